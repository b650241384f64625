package ajaxform

import (
	"errors"
	"net/http"
	"reflect"
	"testing"

	"github.com/pthm/ajaxform/lib/encoding"
)

func jsonHeader() http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return h
}

func TestNewResponseOutcome(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		success bool
		all     []string
	}{
		{"2xx envelope", 200, `{"success":true}`, true, nil},
		{"2xx without flag", 201, `{"id":7}`, true, nil},
		{"2xx empty body", 204, ``, true, nil},
		{"2xx succeeds despite false flag", 200, `{"success":false,"messages":{"name":"Taken"}}`, true, nil},
		{"explicit true wins over 4xx", 400, `{"success":true}`, true, nil},
		{"non-bool flag ignored", 200, `{"success":"no"}`, true, nil},
		{"4xx messages", 422, `{"success":false,"messages":{"email":["Required","Invalid format"]}}`, false, []string{"Required", "Invalid format"}},
		{"4xx errors", 422, `{"success":false,"errors":{"name":"Too short"}}`, false, []string{"Too short"}},
		{"flat body", 422, `{"success":false,"name":"<b>bad</b>","age":3}`, false, []string{"<b>bad</b>", "3"}},
		{"empty messages falls through to errors", 422, `{"messages":"","errors":{"a":"b"}}`, false, []string{"b"}},
		{"array body", 500, `["first","second"]`, false, []string{"first", "second"}},
		{"scalar body", 500, `"oops"`, false, []string{GenericErrorMessage}},
		{"4xx empty body", 500, ``, false, []string{GenericErrorMessage}},
		{"unparseable 2xx", 200, `<html>`, false, []string{GenericErrorMessage}},
		{"trailing garbage", 200, `{"success":true} trailing garbage`, false, []string{GenericErrorMessage}},
		{"two documents", 200, `{"a":1}{"b":2}`, false, []string{GenericErrorMessage}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResponse("id", tt.status, jsonHeader(), []byte(tt.body))
			if r.Success != tt.success {
				t.Errorf("Success = %v, want %v", r.Success, tt.success)
			}
			if got := r.Messages.All(); !reflect.DeepEqual(got, append([]string{}, tt.all...)) {
				t.Errorf("Messages.All() = %q, want %q", got, tt.all)
			}
			if r.Status != tt.status || r.RequestID != "id" {
				t.Errorf("Status/RequestID = %d/%q", r.Status, r.RequestID)
			}
		})
	}
}

func TestNewResponseKeepsFieldOrder(t *testing.T) {
	body := `{"success":false,"messages":{"zeta":"z","alpha":["a1","a2"],"mid":null}}`
	r := newResponse("", 422, jsonHeader(), []byte(body))

	if got, want := r.Messages.Fields(), []string{"zeta", "alpha", "mid"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Fields() = %v, want %v", got, want)
	}
	if got := r.Messages.Get("alpha"); !reflect.DeepEqual(got, []string{"a1", "a2"}) {
		t.Errorf("Get(alpha) = %v", got)
	}
	if got := r.Messages.Get("mid"); !reflect.DeepEqual(got, []string{"null"}) {
		t.Errorf("Get(mid) = %v, want [null]", got)
	}
	if r.Messages.Len() != 4 {
		t.Errorf("Len() = %d, want 4", r.Messages.Len())
	}
}

func TestNewResponseSynthesizedEnvelope(t *testing.T) {
	r := newResponse("", 502, jsonHeader(), []byte(`<oops>`))

	env := r.Envelope()
	if env == nil {
		t.Fatal("Envelope() = nil, want the synthesized failure envelope")
	}
	if v, _ := env.Get("success"); v != false {
		t.Errorf("success = %v, want false", v)
	}
	if !errors.Is(r.Err, ErrInvalidFormat) {
		t.Errorf("Err = %v, want ErrInvalidFormat", r.Err)
	}
	if r.TransportFailed() {
		t.Error("a received response is not a transport failure")
	}
	if got := r.Messages.Fields(); !reflect.DeepEqual(got, []string{"0"}) {
		t.Errorf("Fields() = %v, want [0]", got)
	}
}

func TestNewResponseMsgpack(t *testing.T) {
	env := NewObject()
	env.Set("success", false)
	msgs := NewObject()
	msgs.Set("email", []any{"Required"})
	env.Set("messages", msgs)

	data, err := encoding.EncodeMsgpack(env)
	if err != nil {
		t.Fatalf("EncodeMsgpack: %v", err)
	}

	h := make(http.Header)
	h.Set("Content-Type", "application/msgpack")
	r := newResponse("", 422, h, data)

	if r.Success {
		t.Error("Success = true, want false")
	}
	if got := r.Messages.Get("email"); !reflect.DeepEqual(got, []string{"Required"}) {
		t.Errorf("Get(email) = %v", got)
	}
}

func TestTransportFailure(t *testing.T) {
	cause := errors.New("connection refused")
	r := transportFailure("rid", cause)

	if r.Success {
		t.Error("Success = true, want false")
	}
	if !r.TransportFailed() {
		t.Error("TransportFailed() = false, want true")
	}
	if !errors.Is(r.Err, cause) {
		t.Errorf("Err = %v, want %v", r.Err, cause)
	}
	if got := r.Messages.All(); !reflect.DeepEqual(got, []string{TransportErrorMessage}) {
		t.Errorf("Messages = %v", got)
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{"", false},
		{"x", true},
		{float64(0), false},
		{float64(2), true},
		{[]any{}, true},
		{NewObject(), true},
	}
	for _, tt := range tests {
		if got := truthy(tt.in); got != tt.want {
			t.Errorf("truthy(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
