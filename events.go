package ajaxform

// Broadcast event names. Each is dispatched from the target element and
// bubbles.
const (
	EventSubmit   = "simpleajaxform.submit"
	EventSuccess  = "simpleajaxform.success"
	EventError    = "simpleajaxform.error"
	EventComplete = "simpleajaxform.complete"
)

// EventDetail is the payload of every broadcast. Response is nil for
// EventSubmit.
type EventDetail struct {
	Controller *Controller
	Response   *Response
}

// DetailMap converts the payload into plain values for JavaScript listeners:
//
//	{action, requestId, status, success, body, messages: {field: [text...]}}
func (d EventDetail) DetailMap() map[string]any {
	m := map[string]any{}
	if d.Controller != nil {
		m["action"] = d.Controller.Action()
	}
	r := d.Response
	if r == nil {
		return m
	}

	m["requestId"] = r.RequestID
	m["status"] = r.Status
	m["success"] = r.Success
	m["body"] = plain(r.Body)
	if r.Err != nil {
		m["error"] = r.Err.Error()
	}

	messages := make(map[string]any, len(r.Messages))
	for _, fm := range r.Messages {
		list := make([]any, len(fm.Messages))
		for i, msg := range fm.Messages {
			list[i] = msg
		}
		messages[fm.Field] = list
	}
	m["messages"] = messages
	return m
}

// plain turns decoded values into maps and slices of basic types.
func plain(v any) any {
	switch t := v.(type) {
	case *Object:
		if t == nil {
			return nil
		}
		out := make(map[string]any, t.Len())
		for _, k := range t.Keys() {
			val, _ := t.Get(k)
			out[k] = plain(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	}
	return v
}

// publish dispatches name from the controller's target.
func (c *Controller) publish(name string, resp *Response) {
	c.target.Dispatch(name, EventDetail{Controller: c, Response: resp})
}
