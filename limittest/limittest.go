// Package limittest provides test helpers for exercising body size limits.
package limittest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/bjaus/bodylimit"
)

// Chunked returns a body that yields data at most size bytes per read. The
// concrete type is hidden so net/http cannot learn the length up front and
// sends the request with chunked transfer encoding.
func Chunked(data []byte, size int) io.ReadCloser {
	if size <= 0 {
		size = 1
	}
	return &chunkedReader{data: data, size: size}
}

type chunkedReader struct {
	data []byte
	size int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := min(c.size, len(c.data), len(p))
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func (c *chunkedReader) Close() error { return nil }

// Repeat returns a body that yields n copies of b, at most chunk bytes per
// read, without ever allocating the full payload. Use it to drive limits with
// bodies far larger than a test should hold in memory.
func Repeat(b byte, n int64, chunk int) io.ReadCloser {
	if chunk <= 0 {
		chunk = 1
	}
	return &repeatReader{b: b, left: n, chunk: chunk}
}

type repeatReader struct {
	b     byte
	left  int64
	chunk int
}

func (r *repeatReader) Read(p []byte) (int, error) {
	if r.left == 0 {
		return 0, io.EOF
	}
	n := min(r.chunk, len(p))
	if int64(n) > r.left {
		n = int(r.left)
	}
	for i := range n {
		p[i] = r.b
	}
	r.left -= int64(n)
	return n, nil
}

func (r *repeatReader) Close() error { return nil }

// Recorder captures terminal-callback invocations so tests can assert how
// often a callback fired and with what outcome. Safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	calls []error
}

// Observe matches the shape bodylimit.WithCallback expects.
func (rec *Recorder) Observe(err error) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.calls = append(rec.calls, err)
}

// Callback matches the shape of bodylimit.Config.Callback.
func (rec *Recorder) Callback(_ *http.Request, err error) { rec.Observe(err) }

// Calls returns the recorded outcomes in order.
func (rec *Recorder) Calls() []error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]error(nil), rec.calls...)
}

// Server starts an httptest server serving h behind mw and closes it when the
// test ends.
func Server(t testing.TB, mw bodylimit.Middleware, h http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(mw(h))
	t.Cleanup(srv.Close)
	return srv
}

// Drain returns a handler that reads the request body to exhaustion and
// responds 200 with the consumed byte count, mapping a limit violation to a
// problem+json response the way a production handler would.
func Drain() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, err := io.Copy(io.Discard, r.Body)
		if err != nil {
			bodylimit.WriteProblem(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		//nolint:errcheck,gosec // best-effort write
		io.WriteString(w, strconv.FormatInt(n, 10))
	})
}

// Post sends a POST with the given body and returns the response. The
// response body is closed when the test ends.
func Post(t testing.TB, srv *httptest.Server, path string, body io.Reader) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+path, body)
	if err != nil {
		t.Fatalf("limittest: create request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("limittest: execute request: %v", err)
	}
	t.Cleanup(func() {
		//nolint:errcheck,gosec // best-effort close
		resp.Body.Close()
	})
	return resp
}
