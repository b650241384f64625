package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pthm/ajaxform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*server, *httptest.Server) {
	t.Helper()
	s := newServer(defaultFixtures(), zap.NewNop(), prometheus.NewRegistry())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func post(t *testing.T, target string, form url.Values, ajax bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(ajaxform.HeaderRequestID, "req-1")
	if ajax {
		req.Header.Set(ajaxform.HeaderRequestedWith, "XMLHttpRequest")
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	res, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(data)
}

func TestServeIndex(t *testing.T) {
	_, srv := newTestServer(t)

	res, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", res.Header.Get("Content-Type"))
	body := readBody(t, res)
	assert.Contains(t, body, `data-ajaxform-action="/submit/contact"`)
	assert.Contains(t, body, `data-ajaxform-action="/submit/reject"`)
	assert.Contains(t, body, `<textarea name="message">`)
	assert.Contains(t, body, `class="form-messages"`)
	assert.NotContains(t, body, "&#x2F;")
}

func TestFixtureFormEscapesMarkup(t *testing.T) {
	var b strings.Builder
	f := &Fixture{Title: `<b>"Hi"</b>`, Fields: []string{"email"}}
	require.NoError(t, fixtureForm("contact", f).Render(context.Background(), &b))

	out := b.String()
	assert.Contains(t, out, `action="/submit/contact"`)
	assert.Contains(t, out, `<h2>&lt;b&gt;&#34;Hi&#34;&lt;/b&gt;</h2>`)
	assert.Contains(t, out, `<input type="email" name="email">`)
}

func TestServeSubmitFailure(t *testing.T) {
	_, srv := newTestServer(t)

	res := post(t, srv.URL+"/submit/contact", url.Values{"name": {"Ada"}}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Equal(t, "req-1", res.Header.Get(ajaxform.HeaderRequestID))
	assert.Equal(t, "no-store", res.Header.Get("Cache-Control"))

	body := readBody(t, res)
	assert.JSONEq(t, `{"success":false,"messages":{"email":["This field is required."],"message":["This field is required."]}}`, body)
	assert.Less(t, strings.Index(body, `"email"`), strings.Index(body, `"message"`))
}

func TestServeSubmitSuccess(t *testing.T) {
	_, srv := newTestServer(t)

	form := url.Values{"name": {"Ada"}, "email": {"ada@example.com"}, "message": {"Hello"}}
	res := post(t, srv.URL+"/submit/contact", form, true)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"success":true}`, readBody(t, res))
}

func TestServePlainPostRedirects(t *testing.T) {
	_, srv := newTestServer(t)

	res := post(t, srv.URL+"/submit/reject", url.Values{"email": {"x@example.com"}}, false)
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/?result=failure", res.Header.Get("Location"))
}

func TestServeUnknownFixture(t *testing.T) {
	_, srv := newTestServer(t)

	res := post(t, srv.URL+"/submit/nope", url.Values{}, true)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.JSONEq(t, `{"success":false,"messages":{"":["Unknown form."]}}`, readBody(t, res))
}

func TestServeMetrics(t *testing.T) {
	_, srv := newTestServer(t)

	post(t, srv.URL+"/submit/contact", url.Values{}, true)
	post(t, srv.URL+"/submit/reject", url.Values{"email": {"x@example.com"}}, true)

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()

	body := readBody(t, res)
	assert.Contains(t, body, `ajaxform_submissions_total{fixture="contact",outcome="failure"} 1`)
	assert.Contains(t, body, `ajaxform_submissions_total{fixture="reject",outcome="failure"} 1`)
	assert.Contains(t, body, `ajaxform_submission_duration_seconds_count{fixture="contact"} 1`)
}

func TestServeDemoPageDrivesController(t *testing.T) {
	s := newServer(defaultFixtures(), zap.NewNop(), prometheus.NewRegistry())
	page, err := ajaxform.RenderString(context.Background(), demoPage(s.fixtures))
	require.NoError(t, err)

	result, err := ajaxform.TestSubmitSelector(page, "//section[@id='reject']/form",
		s.fixtureHandler("reject", s.fixtures["reject"]))
	require.NoError(t, err)

	assert.True(t, result.Failed())
	assert.True(t, result.HasErrorMessage("Address is on the block list"))
	assert.Equal(t, "XMLHttpRequest", result.SentHeader(ajaxform.HeaderRequestedWith))
	assert.Equal(t, []string{
		ajaxform.EventSubmit, ajaxform.EventError, ajaxform.EventComplete,
	}, result.Events)
}

func TestServeRunShutsDown(t *testing.T) {
	s := newServer(defaultFixtures(), zap.NewNop(), prometheus.NewRegistry())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.run(ctx, ln, time.Second) }()

	require.Eventually(t, func() bool {
		res, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			return false
		}
		res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeRateLimit(t *testing.T) {
	fs, err := parseFixtures([]byte("fixtures:\n  ping:\n    rate_limit: 0.001\n"))
	require.NoError(t, err)
	s := newServer(fs, zap.NewNop(), prometheus.NewRegistry())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	first := post(t, srv.URL+"/submit/ping", url.Values{}, true)
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := post(t, srv.URL+"/submit/ping", url.Values{}, true)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Equal(t, "1", second.Header.Get("Retry-After"))
	assert.Contains(t, readBody(t, second), throttledMessage)
}
