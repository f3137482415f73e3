package sandbox

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DOM is the boundary's private document tree. It is only touched from the
// boundary's loop goroutine and needs no locking.
type DOM struct {
	doc *html.Node
}

// parseDOM parses a compiled document.
func parseDOM(src string) (*DOM, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	return &DOM{doc: doc}, nil
}

// Root returns the document node.
func (d *DOM) Root() *html.Node { return d.doc }

// Element returns the first element named tag, or nil.
func (d *DOM) Element(tag string) *html.Node {
	var found *html.Node
	walk(d.doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == tag {
			found = n
			return false
		}
		return true
	})
	return found
}

// Body returns the <body> element.
func (d *DOM) Body() *html.Node { return d.Element("body") }

// Head returns the <head> element.
func (d *DOM) Head() *html.Node { return d.Element("head") }

// DocumentElement returns the <html> element.
func (d *DOM) DocumentElement() *html.Node { return d.Element("html") }

// ByID finds the first element with the given id.
func (d *DOM) ByID(id string) *html.Node {
	var found *html.Node
	walk(d.doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			if v, ok := attr(n, "id"); ok && v == id {
				found = n
				return false
			}
		}
		return true
	})
	return found
}

// Scripts returns the <script> elements in document order.
func (d *DOM) Scripts() []*html.Node {
	return collect(d.doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Script
	})
}

// Title returns the text of <title>.
func (d *DOM) Title() string {
	if t := d.Element("title"); t != nil {
		return strings.TrimSpace(textContent(t))
	}
	return ""
}

// SetTitle replaces <title> text, creating the element in <head> when absent.
func (d *DOM) SetTitle(s string) {
	t := d.Element("title")
	if t == nil {
		head := d.Head()
		if head == nil {
			return
		}
		t = newElement("title")
		head.AppendChild(t)
	}
	setTextContent(t, s)
}

// Find resolves a target expression against the document: XPath when it
// starts with "/" or "(", CSS otherwise. The first match is returned.
func (d *DOM) Find(target string) (*html.Node, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("empty target")
	}
	if strings.HasPrefix(target, "/") || strings.HasPrefix(target, "(") {
		nodes, err := htmlquery.QueryAll(d.doc, target)
		if err != nil {
			return nil, fmt.Errorf("invalid xpath %q: %w", target, err)
		}
		for _, n := range nodes {
			if n.Type == html.ElementNode {
				return n, nil
			}
		}
		return nil, nil
	}
	nodes, err := querySelectorAll(d.doc, target)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}

// RenderBody serialises the children of <body>.
func (d *DOM) RenderBody() (string, error) {
	body := d.Body()
	if body == nil {
		return "", nil
	}
	return innerHTML(body)
}

// Render serialises the whole document.
func (d *DOM) Render() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, d.doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// querySelectorAll returns descendants of root matching a CSS selector, in
// document order.
func querySelectorAll(root *html.Node, selector string) ([]*html.Node, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return goquery.NewDocumentFromNode(root).FindMatcher(m).Nodes, nil
}

// matches reports whether n itself satisfies selector.
func matches(n *html.Node, selector string) (bool, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return false, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return m.Match(n), nil
}

// walk visits n and its descendants in document order until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

// collect gathers descendants of root (excluding root) satisfying pred.
func collect(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		walk(c, func(n *html.Node) bool {
			if pred(n) {
				out = append(out, n)
			}
			return true
		})
	}
	return out
}

func byTag(root *html.Node, tag string) []*html.Node {
	tag = strings.ToLower(tag)
	return collect(root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && (tag == "*" || n.Data == tag)
	})
}

func byClass(root *html.Node, names string) []*html.Node {
	want := strings.Fields(names)
	if len(want) == 0 {
		return nil
	}
	return collect(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, w := range want {
			if !hasClass(n, w) {
				return false
			}
		}
		return true
	})
}

func newElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

func newText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attr(n *html.Node, key string) (string, bool) {
	key = strings.ToLower(key)
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	key = strings.ToLower(key)
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	key = strings.ToLower(key)
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func classes(n *html.Node) []string {
	v, _ := attr(n, "class")
	return strings.Fields(v)
}

func hasClass(n *html.Node, name string) bool {
	for _, c := range classes(n) {
		if c == name {
			return true
		}
	}
	return false
}

// addClass appends name unless present. An attribute left empty by
// removeClass is dropped so the element serialises as it was authored.
func addClass(n *html.Node, name string) {
	if hasClass(n, name) {
		return
	}
	setAttr(n, "class", strings.Join(append(classes(n), name), " "))
}

func removeClass(n *html.Node, name string) {
	if _, ok := attr(n, "class"); !ok {
		return
	}
	cur := classes(n)
	kept := cur[:0]
	for _, c := range cur {
		if c != name {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		removeAttr(n, "class")
		return
	}
	setAttr(n, "class", strings.Join(kept, " "))
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

func setTextContent(n *html.Node, s string) {
	if n.Type == html.TextNode {
		n.Data = s
		return
	}
	removeChildren(n)
	if s != "" {
		n.AppendChild(newText(s))
	}
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

func innerHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func setInnerHTML(n *html.Node, src string) error {
	nodes, err := html.ParseFragment(strings.NewReader(src), n)
	if err != nil {
		return err
	}
	removeChildren(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	return nil
}

func outerHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// detach unlinks n from its parent, if any.
func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// contains reports whether other is n or one of its descendants.
func contains(n, other *html.Node) bool {
	for p := other; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}
	return false
}

func elementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

func parentElement(n *html.Node) *html.Node {
	if n.Parent != nil && n.Parent.Type == html.ElementNode {
		return n.Parent
	}
	return nil
}

func siblingElement(n *html.Node, forward bool) *html.Node {
	for s := step(n, forward); s != nil; s = step(s, forward) {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func step(n *html.Node, forward bool) *html.Node {
	if forward {
		return n.NextSibling
	}
	return n.PrevSibling
}

// describe renders an element as tag#id for diagnostics.
func describe(n *html.Node) string {
	if v, ok := attr(n, "id"); ok && v != "" {
		return n.Data + "#" + v
	}
	return n.Data
}

// styleDecls parses an inline style attribute into ordered declarations.
func styleDecls(src string) [][2]string {
	var out [][2]string
	for _, part := range strings.Split(src, ";") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		k = strings.TrimSpace(strings.ToLower(k))
		v = strings.TrimSpace(v)
		if k == "" {
			continue
		}
		out = append(out, [2]string{k, v})
	}
	return out
}

func formatStyle(decls [][2]string) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d[0]+": "+d[1]+";")
	}
	return strings.Join(parts, " ")
}

// cssProperty converts a camelCase property to its hyphenated form.
func cssProperty(name string) string {
	if name == "cssFloat" {
		return "float"
	}
	var b strings.Builder
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('-')
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
