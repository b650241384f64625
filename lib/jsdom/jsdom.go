//go:build js && wasm

// Package jsdom implements the dom interfaces over the browser's document
// through syscall/js. Selectors are CSS selectors.
package jsdom

import (
	"errors"
	"fmt"
	"strings"
	"syscall/js"

	"github.com/pthm/ajaxform/lib/dom"
)

// DetailMapper is implemented by event payloads that can be handed to
// JavaScript listeners as event.detail.
type DetailMapper interface {
	DetailMap() map[string]any
}

// Document wraps window.document.
type Document struct {
	win js.Value
	doc js.Value
}

// New returns the page's document.
func New() *Document {
	win := js.Global()
	return &Document{win: win, doc: win.Get("document")}
}

func (d *Document) Root() dom.Element {
	return wrap(d.doc.Get("documentElement"))
}

func (d *Document) Query(selector string) (els []dom.Element, err error) {
	return queryAll(d.doc, selector)
}

func (d *Document) CreateElement(tag string) (el dom.Element, err error) {
	defer recoverJS(&err)
	return wrap(d.doc.Call("createElement", tag)), nil
}

func (d *Document) ResolveURL(ref string) (u string, err error) {
	defer recoverJS(&err)
	return d.win.Get("URL").New(ref, d.doc.Get("baseURI")).Get("href").String(), nil
}

func (d *Document) SupportsFormData() bool {
	return d.win.Get("FormData").Type() == js.TypeFunction
}

func (d *Document) ScrollTo(el dom.Element, offset int, smooth bool) {
	e, ok := el.(*Element)
	if !ok {
		return
	}
	top := e.v.Call("getBoundingClientRect").Get("top").Float() + d.win.Get("pageYOffset").Float() - float64(offset)
	behavior := "auto"
	if smooth {
		behavior = "smooth"
	}
	d.win.Call("scrollTo", map[string]any{"top": top, "behavior": behavior})
}

// Element wraps a DOM element.
type Element struct {
	v js.Value
}

func wrap(v js.Value) *Element {
	if v.IsNull() || v.IsUndefined() {
		return nil
	}
	return &Element{v: v}
}

// Value returns the wrapped JavaScript value.
func (e *Element) Value() js.Value {
	return e.v
}

func (e *Element) TagName() string {
	return strings.ToLower(e.v.Get("tagName").String())
}

func (e *Element) Attr(name string) (string, bool) {
	if !e.v.Call("hasAttribute", name).Bool() {
		return "", false
	}
	return e.v.Call("getAttribute", name).String(), true
}

func (e *Element) SetAttr(name, value string) {
	e.v.Call("setAttribute", name, value)
}

func (e *Element) RemoveAttr(name string) {
	e.v.Call("removeAttribute", name)
}

func (e *Element) HasClass(class string) bool {
	return e.v.Get("classList").Call("contains", class).Bool()
}

func (e *Element) Children() []dom.Element {
	children := e.v.Get("children")
	out := make([]dom.Element, 0, children.Length())
	for i := 0; i < children.Length(); i++ {
		out = append(out, wrap(children.Index(i)))
	}
	return out
}

func (e *Element) Query(selector string) ([]dom.Element, error) {
	return queryAll(e.v, selector)
}

func (e *Element) InnerHTML() string {
	return e.v.Get("innerHTML").String()
}

func (e *Element) SetInnerHTML(markup string) (err error) {
	defer recoverJS(&err)
	e.v.Set("innerHTML", markup)
	return nil
}

func (e *Element) AppendHTML(markup string) (err error) {
	defer recoverJS(&err)
	e.v.Call("insertAdjacentHTML", "beforeend", markup)
	return nil
}

func (e *Element) Prepend(child dom.Element) (err error) {
	c, ok := child.(*Element)
	if !ok {
		return errors.New("jsdom: element belongs to another backend")
	}
	defer recoverJS(&err)
	e.v.Call("prepend", c.v)
	return nil
}

// Fields reads the form through FormData when available, falling back to
// walking form.elements.
func (e *Element) Fields() (fields []dom.Field, err error) {
	defer recoverJS(&err)

	ctor := js.Global().Get("FormData")
	if ctor.Type() != js.TypeFunction {
		return e.elementFields(), nil
	}

	fileCtor := js.Global().Get("File")
	entries := ctor.New(e.v).Call("entries")
	for {
		next := entries.Call("next")
		if next.Get("done").Bool() {
			break
		}
		pair := next.Get("value")
		name := pair.Index(0).String()
		value := pair.Index(1)

		if value.Type() == js.TypeString {
			fields = append(fields, dom.Field{Name: name, Value: value.String()})
			continue
		}
		if !value.InstanceOf(fileCtor) {
			continue
		}

		f := dom.Field{Name: name, Value: value.Get("name").String(), IsFile: true}
		if value.Get("name").String() != "" || value.Get("size").Int() > 0 {
			data, err := readFile(value)
			if err != nil {
				return nil, fmt.Errorf("jsdom: reading %q: %w", name, err)
			}
			f.File = &dom.File{
				Name:        value.Get("name").String(),
				ContentType: value.Get("type").String(),
				Data:        data,
			}
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func (e *Element) elementFields() []dom.Field {
	var fields []dom.Field
	els := e.v.Get("elements")
	for i := 0; i < els.Length(); i++ {
		el := els.Index(i)
		name := el.Get("name").String()
		if name == "" || el.Get("disabled").Bool() {
			continue
		}
		typ := strings.ToLower(el.Get("type").String())
		switch typ {
		case "checkbox", "radio":
			if el.Get("checked").Bool() {
				fields = append(fields, dom.Field{Name: name, Value: el.Get("value").String()})
			}
		case "submit", "button", "image", "reset", "fieldset":
		case "file":
			fields = append(fields, dom.Field{Name: name, IsFile: true})
		case "select-multiple":
			opts := el.Get("options")
			for j := 0; j < opts.Length(); j++ {
				if opt := opts.Index(j); opt.Get("selected").Bool() {
					fields = append(fields, dom.Field{Name: name, Value: opt.Get("value").String()})
				}
			}
		default:
			fields = append(fields, dom.Field{Name: name, Value: el.Get("value").String()})
		}
	}
	return fields
}

func (e *Element) Reset() {
	if e.v.Get("reset").Type() == js.TypeFunction {
		e.v.Call("reset")
	}
}

func (e *Element) SetDisabled(disabled bool) {
	e.v.Set("disabled", disabled)
}

func (e *Element) Blur() {
	if e.v.Get("blur").Type() == js.TypeFunction {
		e.v.Call("blur")
	}
}

func (e *Element) AddEventListener(name string, fn func(dom.Event)) func() {
	cb := js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) > 0 {
			fn(&event{v: args[0]})
		}
		return nil
	})
	e.v.Call("addEventListener", name, cb)

	released := false
	return func() {
		if released {
			return
		}
		released = true
		e.v.Call("removeEventListener", name, cb)
		cb.Release()
	}
}

func (e *Element) Dispatch(name string, detail any) {
	init := map[string]any{"bubbles": true}
	if m, ok := detail.(DetailMapper); ok {
		init["detail"] = m.DetailMap()
	}
	ev := js.Global().Get("CustomEvent").New(name, init)
	e.v.Call("dispatchEvent", ev)
}

type event struct {
	v js.Value
}

func (e *event) Type() string           { return e.v.Get("type").String() }
func (e *event) PreventDefault()        { e.v.Call("preventDefault") }
func (e *event) DefaultPrevented() bool { return e.v.Get("defaultPrevented").Bool() }
func (e *event) Detail() any            { return e.v.Get("detail") }

func queryAll(root js.Value, selector string) (els []dom.Element, err error) {
	defer recoverJS(&err)

	list := root.Call("querySelectorAll", selector)
	els = make([]dom.Element, 0, list.Length())
	for i := 0; i < list.Length(); i++ {
		els = append(els, wrap(list.Index(i)))
	}
	return els, nil
}

// readFile resolves file.arrayBuffer(). It blocks, so it must not run on
// the event loop's own callback.
func readFile(file js.Value) ([]byte, error) {
	buf, err := await(file.Call("arrayBuffer"))
	if err != nil {
		return nil, err
	}
	arr := js.Global().Get("Uint8Array").New(buf)
	data := make([]byte, arr.Length())
	js.CopyBytesToGo(data, arr)
	return data, nil
}

func await(promise js.Value) (js.Value, error) {
	type settled struct {
		v   js.Value
		err error
	}
	done := make(chan settled, 1)

	onResolve := js.FuncOf(func(this js.Value, args []js.Value) any {
		done <- settled{v: args[0]}
		return nil
	})
	onReject := js.FuncOf(func(this js.Value, args []js.Value) any {
		done <- settled{err: errors.New(args[0].Call("toString").String())}
		return nil
	})
	defer onResolve.Release()
	defer onReject.Release()

	promise.Call("then", onResolve, onReject)
	s := <-done
	return s.v, s.err
}

// recoverJS turns a thrown JavaScript exception into an error.
func recoverJS(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if jsErr, ok := r.(js.Error); ok {
		*err = fmt.Errorf("jsdom: %s", jsErr.Error())
		return
	}
	panic(r)
}
