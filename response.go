package ajaxform

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/pthm/ajaxform/lib/encoding"
)

// Messages synthesized when the server gives nothing usable.
const (
	TransportErrorMessage = "There was an issue communicating with the server."
	GenericErrorMessage   = "An error was encountered"
)

// FieldMessages is the list of messages reported for one field.
type FieldMessages struct {
	Field    string
	Messages []string
}

// MessageSet holds per-field messages in the order the server sent them.
type MessageSet []FieldMessages

// Len returns the number of messages across all fields.
func (s MessageSet) Len() int {
	n := 0
	for _, fm := range s {
		n += len(fm.Messages)
	}
	return n
}

// Get returns the messages for field.
func (s MessageSet) Get(field string) []string {
	for _, fm := range s {
		if fm.Field == field {
			return fm.Messages
		}
	}
	return nil
}

// Fields returns the field names in order.
func (s MessageSet) Fields() []string {
	out := make([]string, len(s))
	for i, fm := range s {
		out[i] = fm.Field
	}
	return out
}

// All returns every message in field-then-index order.
func (s MessageSet) All() []string {
	out := make([]string, 0, s.Len())
	for _, fm := range s {
		out = append(out, fm.Messages...)
	}
	return out
}

// Response is the context of a settled request. It is handed to callbacks
// and carried by broadcast events.
type Response struct {
	// RequestID is the X-Request-ID sent with the request.
	RequestID string
	// Status is the HTTP status code, 0 when no response arrived.
	Status      int
	Header      http.Header
	ContentType string
	// Raw is the undecoded response body.
	Raw []byte
	// Body is the decoded envelope. Objects are *Object with their key order
	// kept. When the server sent nothing usable, Body is the synthesized
	// failure envelope.
	Body any
	// Err is the transport or decoding error, if any.
	Err error

	Success  bool
	Messages MessageSet
}

// Envelope returns Body as an object, or nil when it is not one.
func (r *Response) Envelope() *Object {
	if r == nil {
		return nil
	}
	obj, _ := r.Body.(*Object)
	return obj
}

// TransportFailed reports whether the request never produced a response.
func (r *Response) TransportFailed() bool {
	return r != nil && r.Status == 0 && r.Err != nil
}

// newResponse interprets a received response.
//
// A 2xx status or a "success": true field in an object body means success;
// a false flag does not turn a 2xx into a failure. A 2xx with an empty body
// is a success. A body that cannot be decoded is a failure with the generic
// message, as is a failure whose body is neither an object nor an array.
func newResponse(requestID string, status int, header http.Header, raw []byte) *Response {
	r := &Response{
		RequestID:   requestID,
		Status:      status,
		Header:      header,
		ContentType: header.Get("Content-Type"),
		Raw:         raw,
	}
	ok := status >= 200 && status < 300

	v, err := DecodeBody(r.ContentType, raw)
	switch {
	case err == nil:
		r.Body = v
		r.Success = ok
		if obj, isObj := v.(*Object); isObj {
			if flag, found := obj.Get("success"); found {
				if b, isBool := flag.(bool); isBool && b {
					r.Success = true
				}
			}
		}
		if r.Success {
			return r
		}
		switch v.(type) {
		case *Object, []any:
			r.Messages = deriveMessages(v)
		default:
			r.fail(GenericErrorMessage)
		}

	case errors.Is(err, encoding.ErrEmptyBody) && ok:
		r.Success = true

	default:
		if !errors.Is(err, encoding.ErrEmptyBody) {
			r.Err = err
		}
		r.fail(GenericErrorMessage)
	}
	return r
}

// oversizedResponse builds the failure for a body larger than
// maxResponseBytes. The body is discarded.
func oversizedResponse(requestID string, status int, header http.Header) *Response {
	r := &Response{
		RequestID:   requestID,
		Status:      status,
		Header:      header,
		ContentType: header.Get("Content-Type"),
		Err:         fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, maxResponseBytes),
	}
	r.fail(GenericErrorMessage)
	return r
}

// transportFailure builds the response context for a request that never got
// a response.
func transportFailure(requestID string, err error) *Response {
	r := &Response{RequestID: requestID, Err: err}
	r.fail(TransportErrorMessage)
	return r
}

func (r *Response) fail(message string) {
	r.Success = false
	r.Body = failureEnvelope(message)
	r.Messages = deriveMessages(r.Body)
}

func failureEnvelope(message string) *Object {
	env := NewObject()
	env.Set("success", false)
	env.Set("messages", []any{message})
	return env
}

// deriveMessages picks the message set out of a failure body: "messages" if
// truthy, else "errors" if truthy, else every field but "success". Arrays
// are keyed by index.
func deriveMessages(v any) MessageSet {
	switch t := v.(type) {
	case *Object:
		if m, ok := t.Get("messages"); ok && truthy(m) {
			return messagesOf(m)
		}
		if e, ok := t.Get("errors"); ok && truthy(e) {
			return messagesOf(e)
		}
		rest := t.Clone()
		rest.Delete("success")
		return messagesOf(rest)
	case []any:
		return messagesOf(t)
	}
	return nil
}

func messagesOf(v any) MessageSet {
	var set MessageSet
	switch t := v.(type) {
	case *Object:
		for _, k := range t.Keys() {
			val, _ := t.Get(k)
			set = append(set, FieldMessages{Field: k, Messages: entries(val)})
		}
	case []any:
		for i, e := range t {
			set = append(set, FieldMessages{Field: strconv.Itoa(i), Messages: entries(e)})
		}
	default:
		set = append(set, FieldMessages{Messages: []string{Text(t)}})
	}
	return set
}

func entries(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return []string{Text(v)}
	}
	out := make([]string, len(arr))
	for i, e := range arr {
		out[i] = Text(e)
	}
	return out
}

// truthy follows JavaScript truthiness for decoded values.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	}
	return true
}
