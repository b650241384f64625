// Package dom defines the slice of the document object model a form
// controller needs. Backends live in lib/htmldom (in-memory, for servers,
// tools and tests) and lib/jsdom (the browser, under js/wasm).
package dom

// Document is the page a controller is bound to.
type Document interface {
	// Root returns the document element.
	Root() Element

	// Query returns all elements matching selector. The selector language
	// belongs to the backend: XPath for htmldom, CSS for jsdom.
	Query(selector string) ([]Element, error)

	// CreateElement returns a new, detached element.
	CreateElement(tag string) (Element, error)

	// ResolveURL resolves ref against the document's base URL.
	ResolveURL(ref string) (string, error)

	// SupportsFormData reports whether the runtime can build multipart
	// bodies from a form, which file uploads require.
	SupportsFormData() bool

	// ScrollTo brings el into view, leaving offset pixels above it.
	ScrollTo(el Element, offset int, smooth bool)
}

// Element is a single node in a Document.
type Element interface {
	// TagName returns the lower-case tag name.
	TagName() string

	Attr(name string) (string, bool)
	SetAttr(name, value string)
	RemoveAttr(name string)
	HasClass(class string) bool

	// Children returns the element children in document order.
	Children() []Element

	// Query returns all descendants matching selector.
	Query(selector string) ([]Element, error)

	InnerHTML() string
	SetInnerHTML(markup string) error
	AppendHTML(markup string) error

	// Prepend inserts child as the first child of the element.
	Prepend(child Element) error

	// Fields returns the successful controls of a form element in document
	// order, the way the browser would submit them.
	Fields() ([]Field, error)

	// Reset restores a form element's controls to their default values.
	Reset()

	SetDisabled(disabled bool)
	Blur()

	// AddEventListener registers fn for event and returns a function that
	// removes the registration.
	AddEventListener(event string, fn func(Event)) (remove func())

	// Dispatch fires a bubbling event carrying detail from the element.
	Dispatch(event string, detail any)
}

// Event is delivered to listeners registered with AddEventListener.
type Event interface {
	Type() string
	PreventDefault()
	DefaultPrevented() bool
	Detail() any
}

// Field is one submitted form entry.
type Field struct {
	Name  string
	Value string

	// IsFile is set for <input type="file"> controls, with or without a
	// chosen file.
	IsFile bool
	// File is the chosen file, nil when none was selected.
	File *File
}

// File is the content of a chosen file.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}
