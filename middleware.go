package bodylimit

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Middleware is the standard middleware signature compatible with the entire
// Go middleware ecosystem.
type Middleware func(next http.Handler) http.Handler

// Config configures the middleware returned by New.
type Config struct {
	// OnViolation writes the response when a request is rejected up front
	// because its declared length exceeds the limit.
	// Default: an RFC 9457 problem+json 413.
	OnViolation func(w http.ResponseWriter, r *http.Request, err error)

	// Skip exempts matching requests from enforcement entirely
	// (e.g. a dedicated upload route with its own, larger limit).
	Skip func(r *http.Request) bool

	// Callback observes the body's terminal outcome exactly once per
	// request: nil when the body was fully read within the limit, the
	// violation error otherwise. Declared-length rejections fire it too.
	Callback func(r *http.Request, err error)

	// Logger, when set, logs violations at Warn. Records are throttled so a
	// flood of oversized payloads cannot also flood the logs.
	Logger *slog.Logger

	// Recorder, when set, receives enforcement outcomes. See Metrics for a
	// Prometheus implementation.
	Recorder Recorder
}

// Violation log throttling: at most violationLogBurst records, refilling one
// per violationLogEvery.
const (
	violationLogEvery = time.Second
	violationLogBurst = 5
)

// New returns middleware that rejects or cuts off request bodies larger than
// maxBytes. A maxBytes of zero rejects any nonempty body.
//
// A request whose declared Content-Length already exceeds the limit is
// rejected with 413 before any body bytes are read. Everything else gets its
// body wrapped in a Reader, because a declared length can be absent or a lie:
// the streaming check is the authoritative one. A mid-stream violation
// surfaces to the downstream handler as a *PayloadTooLargeError from Read —
// the handler (or its framework's error mapping) converts it to a response,
// typically via StatusCoder or WriteProblem.
//
// The effective limit is stored in the request context for downstream
// collaborators; see FromContext.
func New(maxBytes int64, cfg ...Config) Middleware {
	var c Config
	if len(cfg) > 0 {
		c = cfg[0]
	}
	if c.OnViolation == nil {
		c.OnViolation = func(w http.ResponseWriter, _ *http.Request, err error) {
			WriteProblem(w, err)
		}
	}

	policy := NewPolicy(maxBytes)
	logLimit := rate.NewLimiter(rate.Every(violationLogEvery), violationLogBurst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c.Skip != nil && c.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			// Escape hatch: an honest oversized declaration fails the
			// request without touching the network buffer. The outcome is
			// the same error kind the streaming check produces.
			if r.ContentLength > policy.MaxBytes() {
				err := &PayloadTooLargeError{Limit: policy.MaxBytes(), Size: r.ContentLength}
				c.reject(logLimit, r, PhaseHeader, err)
				c.OnViolation(w, r, err)
				return
			}

			if r.Body != nil {
				var br *Reader
				br = NewReader(r.Body, policy, WithCallback(func(err error) {
					if err == nil {
						c.complete(r, br.Consumed())
						return
					}
					var vErr *PayloadTooLargeError
					if errors.As(err, &vErr) {
						c.reject(logLimit, r, PhaseStream, vErr)
					}
				}))
				r.Body = br
			}

			next.ServeHTTP(w, withLimit(r, policy.MaxBytes()))
		})
	}
}

// reject fans a violation out to the recorder, the (throttled) logger, and
// the user callback.
func (c *Config) reject(logLimit *rate.Limiter, r *http.Request, phase Phase, err *PayloadTooLargeError) {
	if c.Recorder != nil {
		c.Recorder.Rejected(r, phase)
	}
	if c.Logger != nil && logLimit.Allow() {
		c.Logger.LogAttrs(r.Context(), slog.LevelWarn, "request body limit exceeded",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("phase", string(phase)),
			slog.Int64("limit", err.Limit),
			slog.Int64("size", err.Size),
			slog.String("remote", r.RemoteAddr),
		)
	}
	if c.Callback != nil {
		c.Callback(r, err)
	}
}

// complete reports an in-limit body that was read to exhaustion.
func (c *Config) complete(r *http.Request, size int64) {
	if c.Recorder != nil {
		c.Recorder.Completed(r, size)
	}
	if c.Callback != nil {
		c.Callback(r, nil)
	}
}
