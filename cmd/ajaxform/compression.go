package main

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// newHTTPClient returns the client submit uses for pages and form posts.
// It negotiates brotli and gzip itself and hands back decoded bodies.
func newHTTPClient() *http.Client {
	return &http.Client{Transport: &decompressor{next: http.DefaultTransport}}
}

// decompressor is an http.RoundTripper that advertises br and gzip and
// decodes the response body.
type decompressor struct {
	next http.RoundTripper
}

func (d *decompressor) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", "br, gzip")
	}

	res, err := d.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	var decoded io.Reader
	switch strings.ToLower(strings.TrimSpace(res.Header.Get("Content-Encoding"))) {
	case "br":
		decoded = brotli.NewReader(res.Body)
	case "gzip":
		zr, err := gzip.NewReader(res.Body)
		if err != nil {
			res.Body.Close()
			return nil, fmt.Errorf("gzip response: %w", err)
		}
		decoded = zr
	default:
		return res, nil
	}

	res.Body = &decodedBody{Reader: decoded, raw: res.Body}
	res.Header.Del("Content-Encoding")
	res.Header.Del("Content-Length")
	res.ContentLength = -1
	res.Uncompressed = true
	return res, nil
}

type decodedBody struct {
	io.Reader
	raw io.ReadCloser
}

func (b *decodedBody) Close() error {
	return b.raw.Close()
}

// brotliEncoder plugs brotli into chi's Compressor.
func brotliEncoder(w io.Writer, level int) io.Writer {
	return brotli.NewWriterLevel(w, level)
}
