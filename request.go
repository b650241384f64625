package ajaxform

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request headers sent with every submission.
const (
	HeaderRequestedWith = "X-Requested-With"
	HeaderRequestID     = "X-Request-ID"

	requestedWithXHR = "XMLHttpRequest"
	acceptHeader     = "application/json, application/msgpack;q=0.9, */*;q=0.1"
)

// body is an encoded request body and its content type.
type body struct {
	data        []byte
	contentType string
}

// buildBody encodes fields as multipart form data when multipart is true and
// as application/x-www-form-urlencoded otherwise. A form carrying a file
// field cannot be sent without multipart support.
func buildBody(fields []Field, multipart bool) (body, error) {
	if multipart {
		return buildMultipart(fields)
	}
	for _, f := range fields {
		if f.IsFile {
			return body{}, fmt.Errorf("%w: field %q", ErrFileUploadUnsupported, f.Name)
		}
	}
	return buildURLEncoded(fields), nil
}

func buildURLEncoded(fields []Field) body {
	// url.Values.Encode sorts keys; field order is kept instead.
	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(f.Name))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(f.Value))
	}
	return body{
		data:        []byte(sb.String()),
		contentType: "application/x-www-form-urlencoded",
	}
}

func buildMultipart(fields []Field) (body, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, f := range fields {
		if !f.IsFile {
			if err := mw.WriteField(f.Name, f.Value); err != nil {
				return body{}, fmt.Errorf("ajaxform: writing field %q: %w", f.Name, err)
			}
			continue
		}

		name, contentType, data := "", "application/octet-stream", []byte(nil)
		if f.File != nil {
			name, data = f.File.Name, f.File.Data
			if f.File.ContentType != "" {
				contentType = f.File.ContentType
			}
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(f.Name), quoteEscaper.Replace(name)))
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return body{}, fmt.Errorf("ajaxform: writing file %q: %w", f.Name, err)
		}
		if _, err := part.Write(data); err != nil {
			return body{}, fmt.Errorf("ajaxform: writing file %q: %w", f.Name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return body{}, fmt.Errorf("ajaxform: closing multipart body: %w", err)
	}
	return body{data: buf.Bytes(), contentType: mw.FormDataContentType()}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
