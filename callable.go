package ajaxform

import "reflect"

// IsCallable reports whether v is a non-nil function value.
//
// Loosely typed configuration (data attributes, decoded maps) may carry
// either a function or literal content under the same key; IsCallable
// decides which.
func IsCallable(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Func && !rv.IsNil()
}
