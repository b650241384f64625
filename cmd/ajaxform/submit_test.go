package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pthm/ajaxform/lib/encoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const contactHTML = `<!DOCTYPE html>
<html><body>
<form id="contact" action="/submit/contact">
  <div class="form-messages"></div>
  <input name="name">
  <input type="email" name="email">
  <textarea name="message"></textarea>
  <input type="checkbox" name="subscribe" value="yes">
  <input type="file" name="attachment">
  <button type="submit">Send</button>
</form>
</body></html>`

// execute runs the CLI in an empty working directory so no stray
// ajaxform.yaml is picked up.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writePage(t *testing.T, markup string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(markup), 0o644))
	return path
}

func fixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := newServer(defaultFixtures(), zap.NewNop(), prometheus.NewRegistry())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestSubmitCommandSuccess(t *testing.T) {
	srv := fixtureServer(t)
	page := writePage(t, contactHTML)

	out, err := execute(t, "", "submit", page, "--base-url", srv.URL,
		"-s", "name=Ada", "-s", "email=ada@example.com", "-s", "message=Hello")
	require.NoError(t, err)

	assert.Contains(t, out, "success "+srv.URL+"/submit/contact (status 200")
	assert.Contains(t, out, "[form-success alert alert-success] Submission Successful. Thank you.")
}

func TestSubmitCommandFailure(t *testing.T) {
	srv := fixtureServer(t)
	page := writePage(t, contactHTML)

	out, err := execute(t, "", "submit", page, "--base-url", srv.URL, "-s", "name=Ada")
	assert.ErrorIs(t, err, errSubmissionFailed)
	assert.Contains(t, out, "failed "+srv.URL+"/submit/contact (status 422")
	assert.Equal(t, 2, strings.Count(out, "[form-error alert alert-danger] This field is required."))

	_, err = execute(t, "", "submit", page, "--base-url", srv.URL, "--allow-failure")
	assert.NoError(t, err)
}

func TestSubmitCommandJSONFromStdin(t *testing.T) {
	srv := fixtureServer(t)

	out, err := execute(t, contactHTML, "submit", "-", "--action", srv.URL+"/submit/contact",
		"-s", "email=ada@example.com", "-o", "json", "--allow-failure")
	require.NoError(t, err)

	v, err := encoding.DecodeJSON([]byte(out))
	require.NoError(t, err)
	obj, ok := v.(*encoding.Object)
	require.True(t, ok)
	assert.Equal(t, []string{"action", "requestId", "status", "success", "messages", "body"}, obj.Keys())

	success, _ := obj.Get("success")
	assert.Equal(t, false, success)
	msgs, _ := obj.Get("messages")
	assert.Equal(t, []string{"name", "message"}, msgs.(*encoding.Object).Keys())
}

func TestSubmitCommandSendsFieldsAndFiles(t *testing.T) {
	received := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		received <- r
	}))
	t.Cleanup(srv.Close)

	page := writePage(t, contactHTML)
	upload := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(upload, []byte("hello"), 0o644))

	_, err := execute(t, "", "submit", page, "--action", srv.URL,
		"-s", "name=Ada", "-s", "subscribe=yes", "--file", "attachment="+upload,
		"-H", "Authorization: Bearer token")
	require.NoError(t, err)
	got := <-received

	assert.Equal(t, "Ada", got.FormValue("name"))
	assert.Equal(t, "yes", got.FormValue("subscribe"))
	assert.Equal(t, "Bearer token", got.Header.Get("Authorization"))
	assert.True(t, strings.HasPrefix(got.Header.Get("User-Agent"), "ajaxform/"))

	files := got.MultipartForm.File["attachment"]
	require.Len(t, files, 1)
	assert.Equal(t, "notes.txt", files[0].Filename)
}

func TestSubmitCommandErrors(t *testing.T) {
	page := writePage(t, contactHTML)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad output", []string{"submit", page, "-o", "xml", "--action", "http://x"}, "output"},
		{"missing page", []string{"submit", filepath.Join(t.TempDir(), "nope.html")}, "no such file"},
		{"no form", []string{"submit", page, "-f", "//table", "--action", "http://x"}, "matched 0"},
		{"bad set", []string{"submit", page, "-s", "name", "--action", "http://x"}, "want name=value"},
		{"unknown field", []string{"submit", page, "-s", "zip=1", "--action", "http://x"}, `no field "zip"`},
		{"checkbox value", []string{"submit", page, "-s", "subscribe=no", "--action", "http://x"}, "no checkbox"},
		{"bad header", []string{"submit", page, "-H", "nocolon", "--action", "http://x"}, "Key: Value"},
		{"file on text", []string{"submit", page, "--file", "name=/tmp/x", "--action", "http://x"}, "no file input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
