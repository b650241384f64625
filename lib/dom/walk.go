package dom

import "strings"

// Walk visits the descendants of root in document order. Returning false
// from fn stops the walk.
func Walk(root Element, fn func(Element) bool) {
	walk(root, fn)
}

func walk(el Element, fn func(Element) bool) bool {
	for _, child := range el.Children() {
		if !fn(child) {
			return false
		}
		if !walk(child, fn) {
			return false
		}
	}
	return true
}

// First returns the first descendant of root matching match, or nil.
func First(root Element, match func(Element) bool) Element {
	var found Element
	Walk(root, func(el Element) bool {
		if match(el) {
			found = el
			return false
		}
		return true
	})
	return found
}

// All returns every descendant of root matching match.
func All(root Element, match func(Element) bool) []Element {
	var out []Element
	Walk(root, func(el Element) bool {
		if match(el) {
			out = append(out, el)
		}
		return true
	})
	return out
}

// IsTag returns a matcher for elements with the given tag name.
func IsTag(tag string) func(Element) bool {
	tag = strings.ToLower(tag)
	return func(el Element) bool {
		return el.TagName() == tag
	}
}

// IsSubmitControl reports whether el submits its form when activated:
// any element with type="submit", or a <button> without a type.
func IsSubmitControl(el Element) bool {
	typ, ok := el.Attr("type")
	if ok {
		return strings.EqualFold(strings.TrimSpace(typ), "submit")
	}
	return el.TagName() == "button"
}
