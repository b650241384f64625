package htmldom

import (
	"bytes"
	"errors"
	"strings"

	"github.com/pthm/ajaxform/lib/dom"
	"golang.org/x/net/html"
)

var errForeignElement = errors.New("htmldom: element belongs to another backend or document")

// Element wraps a node of a Document. Wrappers are cached, so the same node
// always yields the same *Element.
type Element struct {
	doc *Document
	n   *html.Node
}

// Node returns the underlying node.
func (e *Element) Node() *html.Node {
	return e.n
}

func (e *Element) TagName() string {
	return strings.ToLower(e.n.Data)
}

func (e *Element) Attr(name string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return getAttr(e.n, name)
}

func (e *Element) SetAttr(name, value string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	setAttr(e.n, name, value)
}

func (e *Element) RemoveAttr(name string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	removeAttr(e.n, name)
}

func (e *Element) HasClass(class string) bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return hasClass(e.n, class)
}

func (e *Element) Children() []dom.Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	var out []dom.Element
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.doc.wrap(c))
		}
	}
	return out
}

// Query evaluates an XPath expression with the element as context node.
func (e *Element) Query(selector string) ([]dom.Element, error) {
	return e.doc.query(e.n, selector)
}

func (e *Element) InnerHTML() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	var buf bytes.Buffer
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// Text returns the text content of the element.
func (e *Element) Text() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return textContent(e.n)
}

func (e *Element) SetInnerHTML(markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), e.n)
	if err != nil {
		return err
	}

	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	for c := e.n.FirstChild; c != nil; {
		next := c.NextSibling
		e.n.RemoveChild(c)
		c = next
	}
	for _, n := range nodes {
		e.n.AppendChild(n)
	}
	return nil
}

func (e *Element) AppendHTML(markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), e.n)
	if err != nil {
		return err
	}

	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	for _, n := range nodes {
		e.n.AppendChild(n)
	}
	return nil
}

func (e *Element) Prepend(child dom.Element) error {
	c, ok := child.(*Element)
	if !ok || c.doc != e.doc {
		return errForeignElement
	}

	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	if c.n.Parent != nil {
		c.n.Parent.RemoveChild(c.n)
	}
	e.n.InsertBefore(c.n, e.n.FirstChild)
	return nil
}

// Fields serializes the form's controls like FormData would: disabled and
// unnamed controls are skipped, unchecked boxes are omitted and file inputs
// contribute one entry per chosen file (or an empty one).
func (e *Element) Fields() ([]dom.Field, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	var fields []dom.Field
	for _, n := range controls(e.n) {
		name, _ := getAttr(n, "name")
		if name == "" || isDisabled(n) {
			continue
		}

		switch n.Data {
		case "input":
			typ, _ := getAttr(n, "type")
			switch strings.ToLower(typ) {
			case "checkbox", "radio":
				if e.doc.isChecked(n) {
					value, ok := getAttr(n, "value")
					if !ok {
						value = "on"
					}
					fields = append(fields, dom.Field{Name: name, Value: value})
				}
			case "submit", "button", "image", "reset":
			case "file":
				chosen := e.doc.files[n]
				if len(chosen) == 0 {
					fields = append(fields, dom.Field{Name: name, IsFile: true})
					continue
				}
				for i := range chosen {
					f := chosen[i]
					fields = append(fields, dom.Field{Name: name, Value: f.Name, IsFile: true, File: &f})
				}
			default:
				fields = append(fields, dom.Field{Name: name, Value: e.doc.valueOf(n)})
			}
		case "textarea":
			fields = append(fields, dom.Field{Name: name, Value: e.doc.valueOf(n)})
		case "select":
			for _, opt := range e.doc.selectedOptions(n) {
				fields = append(fields, dom.Field{Name: name, Value: optionValue(opt)})
			}
		}
	}
	return fields, nil
}

// Reset drops the live state of every control under the element.
func (e *Element) Reset() {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	for _, n := range controls(e.n) {
		delete(e.doc.values, n)
		delete(e.doc.checked, n)
		delete(e.doc.files, n)
		for _, opt := range descendants(n, "option") {
			delete(e.doc.selected, opt)
		}
	}
}

func (e *Element) SetDisabled(disabled bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	if disabled {
		setAttr(e.n, "disabled", "")
	} else {
		removeAttr(e.n, "disabled")
	}
}

func (e *Element) Blur() {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	if e.doc.focused == e.n {
		e.doc.focused = nil
	}
}

func (e *Element) AddEventListener(name string, fn func(dom.Event)) func() {
	l := &listener{event: name, fn: fn}

	e.doc.mu.Lock()
	e.doc.listeners[e.n] = append(e.doc.listeners[e.n], l)
	e.doc.mu.Unlock()

	return func() {
		e.doc.mu.Lock()
		defer e.doc.mu.Unlock()

		ls := e.doc.listeners[e.n]
		for i, cur := range ls {
			if cur == l {
				e.doc.listeners[e.n] = append(ls[:i:i], ls[i+1:]...)
				return
			}
		}
	}
}

// ListenerCount returns how many listeners are registered for event.
func (e *Element) ListenerCount(name string) int {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	count := 0
	for _, l := range e.doc.listeners[e.n] {
		if l.event == name {
			count++
		}
	}
	return count
}

func (e *Element) Dispatch(name string, detail any) {
	e.doc.mu.Lock()
	e.doc.events = append(e.doc.events, Dispatched{Target: e, Name: name, Detail: detail})
	e.doc.mu.Unlock()

	e.doc.fire(e.n, &event{typ: name, detail: detail})
}

// -- live control state; callers hold doc.mu --

func (d *Document) valueOf(n *html.Node) string {
	if v, ok := d.values[n]; ok {
		return v
	}
	if n.Data == "textarea" {
		return textContent(n)
	}
	v, _ := getAttr(n, "value")
	return v
}

func (d *Document) isChecked(n *html.Node) bool {
	if v, ok := d.checked[n]; ok {
		return v
	}
	_, ok := getAttr(n, "checked")
	return ok
}

func (d *Document) isSelected(opt *html.Node) bool {
	if v, ok := d.selected[opt]; ok {
		return v
	}
	_, ok := getAttr(opt, "selected")
	return ok
}

func (d *Document) selectedOptions(sel *html.Node) []*html.Node {
	opts := descendants(sel, "option")
	var out []*html.Node
	for _, opt := range opts {
		if d.isSelected(opt) {
			out = append(out, opt)
		}
	}

	_, multiple := getAttr(sel, "multiple")
	if multiple {
		return out
	}
	if len(out) > 1 {
		return out[len(out)-1:]
	}
	if len(out) == 0 {
		for _, opt := range opts {
			if !isDisabled(opt) {
				return []*html.Node{opt}
			}
		}
	}
	return out
}

// -- node helpers --

func controls(root *html.Node) []*html.Node {
	var out []*html.Node
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "input", "textarea", "select":
				out = append(out, c)
				continue
			}
			visit(c)
		}
	}
	visit(root)
	return out
}

func descendants(root *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == tag {
				out = append(out, c)
			}
			visit(c)
		}
	}
	visit(root)
	return out
}

func optionValue(opt *html.Node) string {
	if v, ok := getAttr(opt, "value"); ok {
		return v
	}
	return strings.TrimSpace(textContent(opt))
}

func isDisabled(n *html.Node) bool {
	if _, ok := getAttr(n, "disabled"); ok {
		return true
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "fieldset" {
			if _, ok := getAttr(p, "disabled"); ok {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}

func getAttr(n *html.Node, key string) (string, bool) {
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
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	key = strings.ToLower(key)
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func hasClass(n *html.Node, class string) bool {
	v, ok := getAttr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}
