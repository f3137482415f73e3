package sandbox

import (
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// styleMap backs element.style: a live view of the style attribute.
type styleMap struct {
	vm *goja.Runtime
	n  *html.Node
}

func (b *Boundary) styleObject(n *html.Node) *goja.Object {
	return b.vm.NewDynamicObject(&styleMap{vm: b.vm, n: n})
}

func (s *styleMap) decls() [][2]string {
	v, _ := attr(s.n, "style")
	return styleDecls(v)
}

func (s *styleMap) lookup(prop string) string {
	for _, d := range s.decls() {
		if d[0] == prop {
			return d[1]
		}
	}
	return ""
}

func (s *styleMap) write(prop, val string) {
	decls := s.decls()
	out := decls[:0]
	replaced := false
	for _, d := range decls {
		if d[0] == prop {
			if val == "" || replaced {
				continue
			}
			d[1] = val
			replaced = true
		}
		out = append(out, d)
	}
	if !replaced && val != "" {
		out = append(out, [2]string{prop, val})
	}
	if len(out) == 0 {
		removeAttr(s.n, "style")
		return
	}
	setAttr(s.n, "style", formatStyle(out))
}

func (s *styleMap) Get(key string) goja.Value {
	switch key {
	case "cssText":
		v, _ := attr(s.n, "style")
		return s.vm.ToValue(v)
	case "length":
		return s.vm.ToValue(len(s.decls()))
	case "getPropertyValue":
		return s.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return s.vm.ToValue(s.lookup(strings.ToLower(call.Argument(0).String())))
		})
	case "setProperty":
		return s.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			s.write(strings.ToLower(call.Argument(0).String()), call.Argument(1).String())
			return goja.Undefined()
		})
	case "removeProperty":
		return s.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			prop := strings.ToLower(call.Argument(0).String())
			old := s.lookup(prop)
			s.write(prop, "")
			return s.vm.ToValue(old)
		})
	case "toString", "valueOf", "constructor", "toJSON":
		return nil
	}
	return s.vm.ToValue(s.lookup(cssProperty(key)))
}

func (s *styleMap) Set(key string, val goja.Value) bool {
	str := ""
	if val != nil && !goja.IsNull(val) && !goja.IsUndefined(val) {
		str = strings.TrimSpace(val.String())
	}
	if key == "cssText" {
		if str == "" {
			removeAttr(s.n, "style")
		} else {
			setAttr(s.n, "style", str)
		}
		return true
	}
	s.write(cssProperty(key), str)
	return true
}

func (s *styleMap) Has(key string) bool { return true }

func (s *styleMap) Delete(key string) bool {
	s.write(cssProperty(key), "")
	return true
}

func (s *styleMap) Keys() []string {
	decls := s.decls()
	keys := make([]string, len(decls))
	for i, d := range decls {
		keys[i] = d[0]
	}
	return keys
}

// datasetMap backs element.dataset over data-* attributes.
type datasetMap struct {
	vm *goja.Runtime
	n  *html.Node
}

func (d *datasetMap) Get(key string) goja.Value {
	if v, ok := attr(d.n, "data-"+cssProperty(key)); ok {
		return d.vm.ToValue(v)
	}
	return nil
}

func (d *datasetMap) Set(key string, val goja.Value) bool {
	setAttr(d.n, "data-"+cssProperty(key), val.String())
	return true
}

func (d *datasetMap) Has(key string) bool {
	_, ok := attr(d.n, "data-"+cssProperty(key))
	return ok
}

func (d *datasetMap) Delete(key string) bool {
	removeAttr(d.n, "data-"+cssProperty(key))
	return true
}

func (d *datasetMap) Keys() []string {
	var keys []string
	for _, a := range d.n.Attr {
		if name, ok := strings.CutPrefix(a.Key, "data-"); ok {
			keys = append(keys, camelCase(name))
		}
	}
	return keys
}

func camelCase(s string) string {
	var b strings.Builder
	upper := false
	for _, r := range s {
		if r == '-' {
			upper = true
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upper = false
		b.WriteRune(r)
	}
	return b.String()
}
