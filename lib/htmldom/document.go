// Package htmldom is an in-memory implementation of the dom interfaces on top
// of golang.org/x/net/html. Selectors are XPath expressions evaluated with
// antchfx/htmlquery.
//
// Attributes hold the default state of form controls; values, checked state
// and attached files set through the Document are the live state, so
// Element.Reset restores what the markup declared.
package htmldom

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"github.com/pthm/ajaxform/lib/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed HTML page. It is safe for concurrent use.
type Document struct {
	mu       sync.Mutex
	root     *html.Node
	base     *url.URL
	baseRaw  string
	formData bool

	elems     map[*html.Node]*Element
	values    map[*html.Node]string
	checked   map[*html.Node]bool
	selected  map[*html.Node]bool
	files     map[*html.Node][]dom.File
	listeners map[*html.Node][]*listener
	focused   *html.Node

	events  []Dispatched
	scrolls []Scroll
}

// Dispatched records an event fired through Element.Dispatch.
type Dispatched struct {
	Target *Element
	Name   string
	Detail any
}

// Scroll records a Document.ScrollTo call.
type Scroll struct {
	Target *Element
	Offset int
	Smooth bool
}

type listener struct {
	event string
	fn    func(dom.Event)
}

// Option configures a Document.
type Option func(*Document)

// WithBaseURL sets the URL relative references are resolved against.
func WithBaseURL(base string) Option {
	return func(d *Document) {
		d.baseRaw = base
	}
}

// WithoutFormData makes the document report no multipart support, like a
// browser without the FormData API.
func WithoutFormData() Option {
	return func(d *Document) {
		d.formData = false
	}
}

// Parse reads an HTML document from r.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldom: parse: %w", err)
	}

	d := &Document{
		root:      root,
		formData:  true,
		elems:     make(map[*html.Node]*Element),
		values:    make(map[*html.Node]string),
		checked:   make(map[*html.Node]bool),
		selected:  make(map[*html.Node]bool),
		files:     make(map[*html.Node][]dom.File),
		listeners: make(map[*html.Node][]*listener),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.baseRaw != "" {
		base, err := url.Parse(d.baseRaw)
		if err != nil {
			return nil, fmt.Errorf("htmldom: base url: %w", err)
		}
		d.base = base
	}
	return d, nil
}

// ParseString parses markup as a full HTML document.
func ParseString(markup string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(markup), opts...)
}

// Root returns the <html> element.
func (d *Document) Root() dom.Element {
	d.mu.Lock()
	defer d.mu.Unlock()

	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return d.wrap(c)
		}
	}
	return nil
}

// Query evaluates an XPath expression against the whole document.
func (d *Document) Query(selector string) ([]dom.Element, error) {
	return d.query(d.root, selector)
}

// QueryOne returns the single element matching selector.
func (d *Document) QueryOne(selector string) (*Element, error) {
	els, err := d.Query(selector)
	if err != nil {
		return nil, err
	}
	if len(els) != 1 {
		return nil, fmt.Errorf("htmldom: %q matched %d elements, want 1", selector, len(els))
	}
	return els[0].(*Element), nil
}

func (d *Document) query(n *html.Node, selector string) ([]dom.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	nodes, err := htmlquery.QueryAll(n, selector)
	if err != nil {
		return nil, fmt.Errorf("htmldom: invalid selector %q: %w", selector, err)
	}

	out := make([]dom.Element, 0, len(nodes))
	for _, node := range nodes {
		if node.Type != html.ElementNode {
			continue
		}
		out = append(out, d.wrap(node))
	}
	return out, nil
}

// CreateElement returns a detached element.
func (d *Document) CreateElement(tag string) (dom.Element, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return nil, fmt.Errorf("htmldom: empty tag name")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	return d.wrap(n), nil
}

// ResolveURL resolves ref against the base URL, if one was configured.
func (d *Document) ResolveURL(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("htmldom: resolve %q: %w", ref, err)
	}
	if d.base == nil {
		return u.String(), nil
	}
	return d.base.ResolveReference(u).String(), nil
}

// SupportsFormData reports whether multipart bodies are available.
func (d *Document) SupportsFormData() bool {
	return d.formData
}

// ScrollTo records the scroll request. There is no viewport to move.
func (d *Document) ScrollTo(el dom.Element, offset int, smooth bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	target, _ := el.(*Element)
	d.scrolls = append(d.scrolls, Scroll{Target: target, Offset: offset, Smooth: smooth})
}

// Submit simulates the user submitting form: submit listeners run and the
// return value reports whether the default navigation would still happen.
func (d *Document) Submit(form dom.Element) bool {
	el, ok := form.(*Element)
	if !ok {
		return false
	}
	ev := &event{typ: "submit"}
	d.fire(el.n, ev)
	return !ev.prevented
}

// SetValue sets the live value of an input, textarea or select.
func (d *Document) SetValue(el dom.Element, value string) {
	e, ok := el.(*Element)
	if !ok {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if e.n.Data != "select" {
		d.values[e.n] = value
		return
	}
	for _, opt := range descendants(e.n, "option") {
		d.selected[opt] = optionValue(opt) == value
	}
}

// SetChecked sets the live checked state of a checkbox or radio button.
func (d *Document) SetChecked(el dom.Element, checked bool) {
	e, ok := el.(*Element)
	if !ok {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.checked[e.n] = checked
}

// AttachFile adds f to the chosen files of a file input.
func (d *Document) AttachFile(el dom.Element, f dom.File) {
	e, ok := el.(*Element)
	if !ok {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[e.n] = append(d.files[e.n], f)
}

// Focus gives el the focus.
func (d *Document) Focus(el dom.Element) {
	e, ok := el.(*Element)
	if !ok {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.focused = e.n
}

// Focused returns the focused element, or nil.
func (d *Document) Focused() *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.focused == nil {
		return nil
	}
	return d.wrap(d.focused)
}

// Events returns every event dispatched so far.
func (d *Document) Events() []Dispatched {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Dispatched, len(d.events))
	copy(out, d.events)
	return out
}

// EventNames returns the names of the dispatched events in order.
func (d *Document) EventNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.events))
	for i, ev := range d.events {
		out[i] = ev.Name
	}
	return out
}

// Scrolls returns every recorded ScrollTo call.
func (d *Document) Scrolls() []Scroll {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Scroll, len(d.scrolls))
	copy(out, d.scrolls)
	return out
}

// HTML renders the whole document.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// wrap returns the cached wrapper for n. Callers hold d.mu.
func (d *Document) wrap(n *html.Node) *Element {
	if el, ok := d.elems[n]; ok {
		return el
	}
	el := &Element{doc: d, n: n}
	d.elems[n] = el
	return el
}

// fire delivers ev to listeners on n and its ancestors.
func (d *Document) fire(n *html.Node, ev *event) {
	d.mu.Lock()
	var fns []func(dom.Event)
	for cur := n; cur != nil; cur = cur.Parent {
		for _, l := range d.listeners[cur] {
			if l.event == ev.typ {
				fns = append(fns, l.fn)
			}
		}
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

type event struct {
	typ       string
	detail    any
	prevented bool
}

func (e *event) Type() string           { return e.typ }
func (e *event) PreventDefault()        { e.prevented = true }
func (e *event) DefaultPrevented() bool { return e.prevented }
func (e *event) Detail() any            { return e.detail }
