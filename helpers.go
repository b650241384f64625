package ajaxform

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/pthm/ajaxform/lib/encoding"
)

// Render writes a templ component to the HTTP response.
//
// Sets Content-Type to text/html and renders the component using the
// request's context. Use it to serve the page that hosts the form:
//
//	func contactPage(w http.ResponseWriter, r *http.Request) {
//	    ajaxform.Render(w, r, contactTemplate())
//	}
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// IsAjax returns true if the request was sent by a controller (or any other
// XMLHttpRequest-style client).
//
// Endpoints that also accept plain form posts use it to choose between an
// envelope and a full page:
//
//	if !ajaxform.IsAjax(r) {
//	    http.Redirect(w, r, "/thanks", http.StatusSeeOther)
//	    return
//	}
//	ajaxform.WriteReply(w, r, ajaxform.Success())
func IsAjax(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get(HeaderRequestedWith), requestedWithXHR)
}

// RequestID returns the submission's X-Request-ID.
//
// Returns empty string if not present.
func RequestID(r *http.Request) string {
	return r.Header.Get(HeaderRequestID)
}

// AcceptsMsgpack returns true if the Accept header ranks msgpack above JSON.
// Ties go to JSON.
func AcceptsMsgpack(r *http.Request) bool {
	jsonQ, msgpackQ := -1.0, -1.0
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		q := 1.0
		if v, ok := params["q"]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				q = f
			}
		}
		switch {
		case mt == encoding.ContentTypeJSON:
			jsonQ = max(jsonQ, q)
		case encoding.IsMsgpack(mt):
			msgpackQ = max(msgpackQ, q)
		}
	}
	return msgpackQ > jsonQ
}

// WriteReply encodes reply as msgpack when the client prefers it and as
// JSON otherwise. The request ID is echoed back in X-Request-ID.
//
//	func contact(w http.ResponseWriter, r *http.Request) {
//	    if r.FormValue("email") == "" {
//	        ajaxform.WriteReply(w, r, ajaxform.Failure().Message("email", "Required"))
//	        return
//	    }
//	    ajaxform.WriteReply(w, r, ajaxform.Success())
//	}
func WriteReply(w http.ResponseWriter, r *http.Request, reply Reply) error {
	contentType := encoding.ContentTypeJSON
	if AcceptsMsgpack(r) {
		contentType = encoding.ContentTypeMsgpack
	}

	data, contentType, err := encoding.Encode(contentType, reply.Envelope())
	if err != nil {
		return wrapEncodingError(err)
	}

	for k, v := range reply.GetHeaders() {
		w.Header().Set(k, v)
	}
	if id := RequestID(r); id != "" {
		w.Header().Set(HeaderRequestID, id)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(reply.GetStatus())
	_, err = w.Write(data)
	return err
}
