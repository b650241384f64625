package ajaxform

import "net/http"

// Reply builds the response envelope a form endpoint sends back:
//
//	{"success": bool, "messages": {field: [text...]}, ...extra}
//
// Reply is a value type; every method returns a modified copy, so partial
// replies can be shared and extended safely.
//
// Example patterns:
//
//	// Success with the controller's configured message
//	return ajaxform.Success()
//
//	// Validation failure, rendered as one block per message
//	return ajaxform.Failure().
//	    Message("email", "Required", "Invalid format").
//	    Message("name", "Too short")
//
//	// Same, under the "errors" key
//	return ajaxform.Failure().Message("name", "Too short").AsErrors()
type Reply struct {
	success  bool
	status   int
	errorKey bool
	messages MessageSet
	extra    []extraField
	headers  map[string]string
}

type extraField struct {
	key   string
	value any
}

// Success creates a successful reply, sent with status 200.
func Success() Reply {
	return Reply{success: true}
}

// Failure creates a failed reply, sent with status 422 unless Status says
// otherwise.
func Failure() Reply {
	return Reply{}
}

// Message appends messages for field. Repeated calls for the same field add
// to its list.
func (r Reply) Message(field string, messages ...string) Reply {
	set := make(MessageSet, len(r.messages), len(r.messages)+1)
	copy(set, r.messages)

	for i, fm := range set {
		if fm.Field == field {
			merged := make([]string, 0, len(fm.Messages)+len(messages))
			merged = append(merged, fm.Messages...)
			merged = append(merged, messages...)
			set[i] = FieldMessages{Field: field, Messages: merged}
			r.messages = set
			return r
		}
	}

	set = append(set, FieldMessages{Field: field, Messages: append([]string(nil), messages...)})
	r.messages = set
	return r
}

// AsErrors sends the messages under "errors" instead of "messages".
func (r Reply) AsErrors() Reply {
	r.errorKey = true
	return r
}

// With adds a top-level field to the envelope. On a failed reply without
// messages, such fields are what the controller renders.
func (r Reply) With(key string, value any) Reply {
	extra := make([]extraField, len(r.extra), len(r.extra)+1)
	copy(extra, r.extra)
	r.extra = append(extra, extraField{key: key, value: value})
	return r
}

// Status sets the HTTP status code.
func (r Reply) Status(code int) Reply {
	r.status = code
	return r
}

// Header sets a response header.
func (r Reply) Header(key, value string) Reply {
	headers := make(map[string]string, len(r.headers)+1)
	for k, v := range r.headers {
		headers[k] = v
	}
	headers[key] = value
	r.headers = headers
	return r
}

// Envelope returns the body to encode, with keys in a stable order:
// success, then messages or errors, then extra fields.
func (r Reply) Envelope() *Object {
	env := NewObject()
	env.Set("success", r.success)

	if len(r.messages) > 0 {
		msgs := NewObject()
		for _, fm := range r.messages {
			list := make([]any, len(fm.Messages))
			for i, m := range fm.Messages {
				list[i] = m
			}
			msgs.Set(fm.Field, list)
		}
		if r.errorKey {
			env.Set("errors", msgs)
		} else {
			env.Set("messages", msgs)
		}
	}

	for _, f := range r.extra {
		env.Set(f.key, f.value)
	}
	return env
}

// IsSuccess reports whether the reply signals success.
func (r Reply) IsSuccess() bool {
	return r.success
}

// GetMessages returns the messages added so far.
func (r Reply) GetMessages() MessageSet {
	return r.messages
}

// GetHeaders returns the response headers.
func (r Reply) GetHeaders() map[string]string {
	return r.headers
}

// GetStatus returns the status code to send, applying the defaults.
func (r Reply) GetStatus() int {
	switch {
	case r.status != 0:
		return r.status
	case r.success:
		return http.StatusOK
	default:
		return http.StatusUnprocessableEntity
	}
}
