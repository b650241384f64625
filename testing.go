package ajaxform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/pthm/ajaxform/lib/htmldom"
)

// TestResult captures the observable effects of one submission run by
// TestSubmit.
type TestResult struct {
	Controller *Controller
	Document   *htmldom.Document

	// Request is the request the endpoint received; RequestBody is its body.
	Request     *http.Request
	RequestBody []byte

	// Response is the response context carried by the completion event.
	Response *Response

	// Events lists the broadcasts dispatched from the target, in order.
	Events []string
	// MessagesHTML is the message region's markup after the submission.
	MessagesHTML string
}

// TestSubmit parses markup, binds a controller to the first form, submits it
// against handler served by an httptest server and reports what happened.
//
//	result, err := ajaxform.TestSubmit(page, http.HandlerFunc(contact))
//	if err != nil {
//	    t.Fatal(err)
//	}
//	if !result.HasErrorMessage("Required") {
//	    t.Error("expected a required-field error")
//	}
func TestSubmit(markup string, handler http.Handler, opts ...Option) (*TestResult, error) {
	return TestSubmitSelector(markup, "//form", handler, opts...)
}

// TestSubmitSelector is TestSubmit with the target chosen by an XPath
// selector.
func TestSubmitSelector(markup, selector string, handler http.Handler, opts ...Option) (*TestResult, error) {
	return TestSubmitWithContext(context.Background(), markup, selector, handler, opts...)
}

// TestSubmitWithContext is TestSubmitSelector with an explicit context for
// the submission.
func TestSubmitWithContext(ctx context.Context, markup, selector string, handler http.Handler, opts ...Option) (*TestResult, error) {
	doc, err := htmldom.ParseString(markup)
	if err != nil {
		return nil, err
	}

	result := &TestResult{Document: doc}
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(data))

		mu.Lock()
		result.Request = r.Clone(context.Background())
		result.Request.Body = io.NopCloser(bytes.NewReader(data))
		result.RequestBody = data
		mu.Unlock()

		handler.ServeHTTP(w, r)
	}))
	defer srv.Close()

	all := append([]Option{WithClient(srv.Client())}, opts...)
	c, err := NewFromSelector(doc, selector, srv.URL, all...)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	result.Controller = c

	for _, name := range []string{EventSubmit, EventSuccess, EventError, EventComplete} {
		remove := c.Target().AddEventListener(name, func(ev Event) {
			mu.Lock()
			defer mu.Unlock()
			result.Events = append(result.Events, name)
			if d, ok := ev.Detail().(EventDetail); ok && name == EventComplete {
				result.Response = d.Response
			}
		})
		defer remove()
	}

	if err := c.Submit(ctx); err != nil {
		return nil, fmt.Errorf("ajaxform: test submit: %w", err)
	}
	result.MessagesHTML = c.Messages().InnerHTML()
	return result, nil
}

// Succeeded reports whether the submission took the success path.
func (r *TestResult) Succeeded() bool {
	return r.Response != nil && r.Response.Success
}

// Failed reports whether the submission took the failure path.
func (r *TestResult) Failed() bool {
	return r.Response != nil && !r.Response.Success
}

// HasEvent reports whether name was broadcast.
func (r *TestResult) HasEvent(name string) bool {
	for _, ev := range r.Events {
		if ev == name {
			return true
		}
	}
	return false
}

// MessagesContain reports whether the message region's markup contains substr.
func (r *TestResult) MessagesContain(substr string) bool {
	return strings.Contains(r.MessagesHTML, substr)
}

// Blocks returns the text of each rendered message block.
func (r *TestResult) Blocks() []string {
	var out []string
	for _, el := range r.Controller.Messages().Children() {
		if e, ok := el.(*htmldom.Element); ok {
			out = append(out, e.Text())
		}
	}
	return out
}

// HasErrorMessage reports whether an error block with exactly text was
// rendered.
func (r *TestResult) HasErrorMessage(text string) bool {
	class := r.Controller.Config().ErrorMessageClass
	for _, el := range r.Controller.Messages().Children() {
		e, ok := el.(*htmldom.Element)
		if !ok {
			continue
		}
		if got, _ := e.Attr("class"); got == class && e.Text() == text {
			return true
		}
	}
	return false
}

// SentField returns the first value the endpoint received for a urlencoded
// or multipart field.
func (r *TestResult) SentField(name string) string {
	if r.Request == nil {
		return ""
	}
	req := r.Request.Clone(context.Background())
	req.Body = io.NopCloser(bytes.NewReader(r.RequestBody))
	if strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/") {
		if err := req.ParseMultipartForm(32 << 20); err != nil {
			return ""
		}
	}
	return req.FormValue(name)
}

// SentHeader returns a request header the endpoint received.
func (r *TestResult) SentHeader(key string) string {
	if r.Request == nil {
		return ""
	}
	return r.Request.Header.Get(key)
}
