package ajaxform

import "github.com/pthm/ajaxform/lib/dom"

// Document is an alias for dom.Document for convenience.
type Document = dom.Document

// Element is an alias for dom.Element for convenience.
type Element = dom.Element

// Event is an alias for dom.Event for convenience.
type Event = dom.Event

// Field is an alias for dom.Field for convenience.
type Field = dom.Field

// File is an alias for dom.File for convenience.
type File = dom.File

// MessagesClass marks the element a controller renders messages into.
const MessagesClass = "form-messages"

// findForm returns target itself when it is a form, else its first
// descendant form.
func findForm(target Element) Element {
	if target.TagName() == "form" {
		return target
	}
	return dom.First(target, dom.IsTag("form"))
}

// findMessages returns the first descendant flagged as a message region,
// skipping <noscript> fallbacks.
func findMessages(target Element) Element {
	return dom.First(target, func(el Element) bool {
		return el.HasClass(MessagesClass) && el.TagName() != "noscript"
	})
}

func submitControls(target Element) []Element {
	return dom.All(target, dom.IsSubmitControl)
}
