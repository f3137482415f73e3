package sandbox

import (
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// wrap returns the script object for n, creating it on first use so that
// a node keeps one identity for the lifetime of the boundary.
func (b *Boundary) wrap(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if obj, ok := b.nodes[n]; ok {
		return obj
	}
	obj := b.vm.NewObject()
	b.nodes[n] = obj
	b.objects[obj] = n

	switch n.Type {
	case html.DocumentNode:
		b.bindDocument(obj, n)
	case html.ElementNode:
		b.bindNode(obj, n)
		b.bindElement(obj, n)
	default:
		b.bindNode(obj, n)
	}
	return obj
}

// nodeArg resolves a script value back to its node.
func (b *Boundary) nodeArg(v goja.Value) *html.Node {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	return b.objects[obj]
}

func (b *Boundary) mustNode(v goja.Value, method string) *html.Node {
	n := b.nodeArg(v)
	if n == nil {
		panic(b.vm.NewTypeError("Failed to execute '" + method + "': parameter 1 is not of type 'Node'"))
	}
	return n
}

func (b *Boundary) list(nodes []*html.Node) goja.Value {
	vals := make([]any, len(nodes))
	for i, n := range nodes {
		vals[i] = b.wrap(n)
	}
	return b.vm.NewArray(vals...)
}

// prop defines an enumerable accessor; a nil set makes it read-only.
func (b *Boundary) prop(obj *goja.Object, name string, get func() any, set func(goja.Value)) {
	getter := b.vm.ToValue(func(goja.FunctionCall) goja.Value { return b.vm.ToValue(get()) })
	var setter goja.Value
	if set != nil {
		setter = b.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	_ = obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

func (b *Boundary) query(root *html.Node, selector string) []*html.Node {
	nodes, err := querySelectorAll(root, selector)
	if err != nil {
		b.throw("SyntaxError", err.Error())
	}
	return nodes
}

func (b *Boundary) first(root *html.Node, selector string) goja.Value {
	nodes := b.query(root, selector)
	if len(nodes) == 0 {
		return goja.Null()
	}
	return b.wrap(nodes[0])
}

// installQueries adds the descendant lookups shared by document and elements.
func (b *Boundary) installQueries(obj *goja.Object, n *html.Node) {
	_ = obj.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return b.first(n, call.Argument(0).String())
	})
	_ = obj.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return b.list(b.query(n, call.Argument(0).String()))
	})
	_ = obj.Set("getElementsByClassName", func(call goja.FunctionCall) goja.Value {
		return b.list(byClass(n, call.Argument(0).String()))
	})
	_ = obj.Set("getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		return b.list(byTag(n, call.Argument(0).String()))
	})
}

// insert places child under parent before ref (append when ref is nil).
func (b *Boundary) insert(parent, child, ref *html.Node) {
	if child.Type == html.DocumentNode || contains(child, parent) {
		b.throw("HierarchyRequestError", "The new child element contains the parent.")
	}
	if ref != nil && ref.Parent != parent {
		b.throw("NotFoundError", "The node before which the new node is to be inserted is not a child of this node.")
	}
	if child == ref {
		return
	}
	detach(child)
	if ref == nil {
		parent.AppendChild(child)
		return
	}
	parent.InsertBefore(child, ref)
}

// appendValues implements append(...nodesOrStrings).
func (b *Boundary) appendValues(parent *html.Node, args []goja.Value) {
	for _, a := range args {
		if child := b.nodeArg(a); child != nil {
			b.insert(parent, child, nil)
			continue
		}
		parent.AppendChild(newText(a.String()))
	}
}

// bindNode installs the surface common to every node type.
func (b *Boundary) bindNode(obj *goja.Object, n *html.Node) {
	b.prop(obj, "nodeType", func() any { return nodeType(n) }, nil)
	b.prop(obj, "nodeName", func() any { return nodeName(n) }, nil)
	b.prop(obj, "textContent", func() any { return textContent(n) }, func(v goja.Value) {
		setTextContent(n, v.String())
	})
	if n.Type == html.TextNode || n.Type == html.CommentNode {
		data := func() any { return n.Data }
		setData := func(v goja.Value) { n.Data = v.String() }
		b.prop(obj, "data", data, setData)
		b.prop(obj, "nodeValue", data, setData)
	}
	b.prop(obj, "parentNode", func() any { return b.wrap(n.Parent) }, nil)
	b.prop(obj, "parentElement", func() any { return b.wrap(parentElement(n)) }, nil)
	b.prop(obj, "firstChild", func() any { return b.wrap(n.FirstChild) }, nil)
	b.prop(obj, "lastChild", func() any { return b.wrap(n.LastChild) }, nil)
	b.prop(obj, "nextSibling", func() any { return b.wrap(n.NextSibling) }, nil)
	b.prop(obj, "previousSibling", func() any { return b.wrap(n.PrevSibling) }, nil)
	b.prop(obj, "childNodes", func() any {
		var kids []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			kids = append(kids, c)
		}
		return b.list(kids)
	}, nil)
	b.prop(obj, "isConnected", func() any { return contains(b.dom.Root(), n) }, nil)
	b.prop(obj, "ownerDocument", func() any { return b.wrap(b.dom.Root()) }, nil)

	_ = obj.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		child := b.mustNode(call.Argument(0), "appendChild")
		b.insert(n, child, nil)
		return call.Argument(0)
	})
	_ = obj.Set("insertBefore", func(call goja.FunctionCall) goja.Value {
		child := b.mustNode(call.Argument(0), "insertBefore")
		b.insert(n, child, b.nodeArg(call.Argument(1)))
		return call.Argument(0)
	})
	_ = obj.Set("removeChild", func(call goja.FunctionCall) goja.Value {
		child := b.mustNode(call.Argument(0), "removeChild")
		if child.Parent != n {
			b.throw("NotFoundError", "The node to be removed is not a child of this node.")
		}
		n.RemoveChild(child)
		return call.Argument(0)
	})
	_ = obj.Set("remove", func(goja.FunctionCall) goja.Value {
		detach(n)
		return goja.Undefined()
	})
	_ = obj.Set("contains", func(call goja.FunctionCall) goja.Value {
		other := b.nodeArg(call.Argument(0))
		return b.vm.ToValue(other != nil && contains(n, other))
	})
	_ = obj.Set("hasChildNodes", func(goja.FunctionCall) goja.Value {
		return b.vm.ToValue(n.FirstChild != nil)
	})
	b.installEventTarget(obj, n)
}

// bindElement installs the Element surface.
func (b *Boundary) bindElement(obj *goja.Object, n *html.Node) {
	attrProp := func(name string) {
		b.prop(obj, name, func() any {
			v, _ := attr(n, name)
			return v
		}, func(v goja.Value) { setAttr(n, name, v.String()) })
	}

	b.prop(obj, "tagName", func() any { return strings.ToUpper(n.Data) }, nil)
	b.prop(obj, "localName", func() any { return n.Data }, nil)
	attrProp("id")
	attrProp("title")
	attrProp("href")
	attrProp("src")
	attrProp("name")
	b.prop(obj, "className", func() any {
		v, _ := attr(n, "class")
		return v
	}, func(v goja.Value) { setAttr(n, "class", v.String()) })
	b.prop(obj, "value", func() any {
		if n.Data == "textarea" {
			return textContent(n)
		}
		v, _ := attr(n, "value")
		return v
	}, func(v goja.Value) {
		if n.Data == "textarea" {
			setTextContent(n, v.String())
			return
		}
		setAttr(n, "value", v.String())
	})
	b.prop(obj, "hidden", func() any {
		_, ok := attr(n, "hidden")
		return ok
	}, func(v goja.Value) {
		if v.ToBoolean() {
			setAttr(n, "hidden", "")
			return
		}
		removeAttr(n, "hidden")
	})
	b.prop(obj, "innerText", func() any { return textContent(n) }, func(v goja.Value) {
		setTextContent(n, v.String())
	})
	b.prop(obj, "innerHTML", func() any {
		s, err := innerHTML(n)
		if err != nil {
			panic(b.vm.NewGoError(err))
		}
		return s
	}, func(v goja.Value) {
		if err := setInnerHTML(n, v.String()); err != nil {
			b.throw("SyntaxError", err.Error())
		}
	})
	b.prop(obj, "outerHTML", func() any {
		s, err := outerHTML(n)
		if err != nil {
			panic(b.vm.NewGoError(err))
		}
		return s
	}, nil)
	b.prop(obj, "children", func() any { return b.list(elementChildren(n)) }, nil)
	b.prop(obj, "childElementCount", func() any { return len(elementChildren(n)) }, nil)
	b.prop(obj, "firstElementChild", func() any {
		kids := elementChildren(n)
		if len(kids) == 0 {
			return goja.Null()
		}
		return b.wrap(kids[0])
	}, nil)
	b.prop(obj, "lastElementChild", func() any {
		kids := elementChildren(n)
		if len(kids) == 0 {
			return goja.Null()
		}
		return b.wrap(kids[len(kids)-1])
	}, nil)
	b.prop(obj, "nextElementSibling", func() any { return b.wrap(siblingElement(n, true)) }, nil)
	b.prop(obj, "previousElementSibling", func() any { return b.wrap(siblingElement(n, false)) }, nil)

	classList := b.classList(n)
	b.prop(obj, "classList", func() any { return classList }, nil)
	style := b.styleObject(n)
	b.prop(obj, "style", func() any { return style }, func(v goja.Value) {
		setAttr(n, "style", v.String())
	})
	dataset := b.vm.NewDynamicObject(&datasetMap{vm: b.vm, n: n})
	b.prop(obj, "dataset", func() any { return dataset }, nil)

	_ = obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		if v, ok := attr(n, call.Argument(0).String()); ok {
			return b.vm.ToValue(v)
		}
		return goja.Null()
	})
	_ = obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		setAttr(n, call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	_ = obj.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		removeAttr(n, call.Argument(0).String())
		return goja.Undefined()
	})
	_ = obj.Set("hasAttribute", func(call goja.FunctionCall) goja.Value {
		_, ok := attr(n, call.Argument(0).String())
		return b.vm.ToValue(ok)
	})
	_ = obj.Set("getAttributeNames", func(goja.FunctionCall) goja.Value {
		names := make([]any, 0, len(n.Attr))
		for _, a := range n.Attr {
			names = append(names, a.Key)
		}
		return b.vm.NewArray(names...)
	})
	_ = obj.Set("append", func(call goja.FunctionCall) goja.Value {
		b.appendValues(n, call.Arguments)
		return goja.Undefined()
	})
	_ = obj.Set("matches", func(call goja.FunctionCall) goja.Value {
		ok, err := matches(n, call.Argument(0).String())
		if err != nil {
			b.throw("SyntaxError", err.Error())
		}
		return b.vm.ToValue(ok)
	})
	_ = obj.Set("closest", func(call goja.FunctionCall) goja.Value {
		sel := call.Argument(0).String()
		for p := n; p != nil && p.Type == html.ElementNode; p = p.Parent {
			ok, err := matches(p, sel)
			if err != nil {
				b.throw("SyntaxError", err.Error())
			}
			if ok {
				return b.wrap(p)
			}
		}
		return goja.Null()
	})
	_ = obj.Set("click", func(goja.FunctionCall) goja.Value {
		if _, err := b.dispatch(n, b.newEvent("click", true, true, false)); err != nil {
			b.reinterrupt(err)
		}
		return goja.Undefined()
	})
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	_ = obj.Set("focus", noop)
	_ = obj.Set("blur", noop)
	_ = obj.Set("scrollIntoView", noop)
	b.installQueries(obj, n)
}

// bindDocument installs the Document surface on the root node.
func (b *Boundary) bindDocument(obj *goja.Object, n *html.Node) {
	b.prop(obj, "nodeType", func() any { return 9 }, nil)
	b.prop(obj, "nodeName", func() any { return "#document" }, nil)
	b.prop(obj, "body", func() any { return b.wrap(b.dom.Body()) }, nil)
	b.prop(obj, "head", func() any { return b.wrap(b.dom.Head()) }, nil)
	b.prop(obj, "documentElement", func() any { return b.wrap(b.dom.DocumentElement()) }, nil)
	b.prop(obj, "activeElement", func() any { return b.wrap(b.dom.Body()) }, nil)
	b.prop(obj, "title", func() any { return b.dom.Title() }, func(v goja.Value) {
		b.dom.SetTitle(v.String())
	})
	b.prop(obj, "readyState", func() any { return b.readyState }, nil)
	b.prop(obj, "defaultView", func() any { return b.vm.GlobalObject() }, nil)
	b.prop(obj, "location", func() any { return b.vm.Get("location") }, nil)
	b.prop(obj, "URL", func() any { return Origin }, nil)
	b.denied(obj, "cookie")

	_ = obj.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		return b.wrap(b.dom.ByID(call.Argument(0).String()))
	})
	_ = obj.Set("createElement", func(call goja.FunctionCall) goja.Value {
		tag := call.Argument(0).String()
		if strings.TrimSpace(tag) == "" || strings.ContainsAny(tag, " <>\"'/=") {
			b.throw("InvalidCharacterError", "The tag name provided ('"+tag+"') is not a valid name.")
		}
		return b.wrap(newElement(tag))
	})
	_ = obj.Set("createTextNode", func(call goja.FunctionCall) goja.Value {
		return b.wrap(newText(call.Argument(0).String()))
	})
	_ = obj.Set("contains", func(call goja.FunctionCall) goja.Value {
		other := b.nodeArg(call.Argument(0))
		return b.vm.ToValue(other != nil && contains(n, other))
	})
	b.installQueries(obj, n)
	b.installEventTarget(obj, n)
}

// classList returns the DOMTokenList view of n's class attribute.
func (b *Boundary) classList(n *html.Node) *goja.Object {
	cl := b.vm.NewObject()
	names := func(call goja.FunctionCall) []string {
		out := make([]string, 0, len(call.Arguments))
		for _, a := range call.Arguments {
			name := a.String()
			if name == "" || strings.ContainsAny(name, " \t\n\f\r") {
				b.throw("InvalidCharacterError", "The token provided ('"+name+"') contains HTML space characters, which are not valid in tokens.")
			}
			out = append(out, name)
		}
		return out
	}
	_ = cl.Set("add", func(call goja.FunctionCall) goja.Value {
		for _, name := range names(call) {
			addClass(n, name)
		}
		return goja.Undefined()
	})
	_ = cl.Set("remove", func(call goja.FunctionCall) goja.Value {
		for _, name := range names(call) {
			removeClass(n, name)
		}
		return goja.Undefined()
	})
	_ = cl.Set("toggle", func(call goja.FunctionCall) goja.Value {
		name := names(goja.FunctionCall{Arguments: call.Arguments[:min(1, len(call.Arguments))]})
		if len(name) == 0 {
			panic(b.vm.NewTypeError("Failed to execute 'toggle': 1 argument required"))
		}
		want := !hasClass(n, name[0])
		if force := call.Argument(1); !goja.IsUndefined(force) {
			want = force.ToBoolean()
		}
		if want {
			addClass(n, name[0])
		} else {
			removeClass(n, name[0])
		}
		return b.vm.ToValue(want)
	})
	_ = cl.Set("contains", func(call goja.FunctionCall) goja.Value {
		return b.vm.ToValue(hasClass(n, call.Argument(0).String()))
	})
	_ = cl.Set("item", func(call goja.FunctionCall) goja.Value {
		cur := classes(n)
		i := call.Argument(0).ToInteger()
		if i < 0 || int(i) >= len(cur) {
			return goja.Null()
		}
		return b.vm.ToValue(cur[i])
	})
	b.prop(cl, "length", func() any { return len(classes(n)) }, nil)
	b.prop(cl, "value", func() any {
		v, _ := attr(n, "class")
		return v
	}, func(v goja.Value) { setAttr(n, "class", v.String()) })
	_ = cl.Set("toString", func(goja.FunctionCall) goja.Value {
		v, _ := attr(n, "class")
		return b.vm.ToValue(v)
	})
	return cl
}

func nodeType(n *html.Node) int {
	switch n.Type {
	case html.ElementNode:
		return 1
	case html.TextNode:
		return 3
	case html.CommentNode:
		return 8
	case html.DocumentNode:
		return 9
	case html.DoctypeNode:
		return 10
	}
	return 0
}

func nodeName(n *html.Node) string {
	switch n.Type {
	case html.ElementNode:
		return strings.ToUpper(n.Data)
	case html.TextNode:
		return "#text"
	case html.CommentNode:
		return "#comment"
	case html.DocumentNode:
		return "#document"
	}
	return n.Data
}
