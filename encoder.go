package ajaxform

import (
	"errors"

	"github.com/pthm/ajaxform/lib/encoding"
)

// Object is an alias for encoding.Object for convenience.
type Object = encoding.Object

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return encoding.NewObject()
}

// DecodeBody decodes a response body according to its content type.
func DecodeBody(contentType string, body []byte) (any, error) {
	v, err := encoding.Decode(contentType, body)
	return v, wrapEncodingError(err)
}

// wrapEncodingError wraps encoding package errors with ajaxform sentinel errors.
func wrapEncodingError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, encoding.ErrInvalidFormat) || errors.Is(err, encoding.ErrEmptyBody) {
		return errors.Join(ErrInvalidFormat, err)
	}
	return err
}
