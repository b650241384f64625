// Package ajaxform submits HTML forms asynchronously and renders the
// server's verdict into the page without a reload.
//
// A Controller binds one form. It intercepts the submit event, posts the
// form's fields to an action URL and, once the response arrives, renders a
// success message or one error block per server-supplied message into a
// message region. Lifecycle events are broadcast from the bound element so
// other code can react without holding a reference to the controller.
//
// # Binding
//
// Controllers work against the Document and Element interfaces from
// lib/dom. lib/jsdom implements them for the browser under js/wasm;
// lib/htmldom implements them in memory for tools and tests.
//
//	doc := jsdom.New()
//	c, err := ajaxform.NewFromSelector(doc, "#contact", "/api/contact",
//	    ajaxform.WithReset(false),
//	    ajaxform.OnSuccess(func(c *ajaxform.Controller, r *ajaxform.Response) {
//	        analytics.Track("contact", r.RequestID)
//	    }),
//	)
//
// A Registry binds every element carrying data-ajaxform-action at once and
// reads per-form options from data-ajaxform-* attributes.
//
// # Lifecycle
//
//	Idle -> Submitting -> {Succeeded | Failed} -> Settled -> Idle
//
// Submitting clears the message region, disables the submit controls, runs
// OnSubmit, broadcasts simpleajaxform.submit and sends the request. A 2xx
// status or an explicit "success": true in the body means success; anything
// else, including network errors, is a failure. Settled scrolls the message
// region into view, re-enables and blurs the submit controls, runs
// OnComplete and broadcasts simpleajaxform.complete exactly once.
//
// Only one submission runs at a time; a second submit while one is pending
// returns ErrSubmitInFlight. Close removes the listener and cancels the
// pending request.
//
// # Envelope
//
// Endpoints reply with
//
//	{"success": false, "messages": {"email": ["Required", "Invalid format"]}}
//
// where "errors" may stand in for "messages" and a failure body with neither
// is read as a flat field-to-message mapping. JSON and msgpack bodies are
// both understood, with field order kept. Reply and WriteReply build such
// envelopes on the server side.
//
// # Escaping
//
// Every message that came from the server is escaped with Escape before it
// becomes markup. The configured success message is not: it is trusted
// markup and must never be built from user input.
package ajaxform
