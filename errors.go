package bodylimit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// StatusCoder is implemented by errors that carry an HTTP status code.
// Hosts can map any error from this package to a response status without
// knowing the concrete type.
type StatusCoder interface {
	StatusCode() int
}

// PayloadTooLargeError is the single error kind produced by this package.
// It is returned both by the declared-length fast path and by a Reader that
// detects an over-limit body mid-stream.
type PayloadTooLargeError struct {
	// Limit is the configured maximum body size in bytes.
	Limit int64
	// Size is the body size that tripped the limit: the declared
	// Content-Length when rejected up front, or the running total at the
	// point the stream exceeded the limit. Mid-stream it is a lower bound —
	// the rest of the body is never read.
	Size int64
}

// Error returns the violation message, carrying both sizes.
func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("request body too large: %d bytes exceeds the %d byte limit", e.Size, e.Limit)
}

// StatusCode returns 413 Request Entity Too Large.
func (e *PayloadTooLargeError) StatusCode() int { return http.StatusRequestEntityTooLarge }

// IsPayloadTooLarge reports whether err is (or wraps) a size-limit violation.
func IsPayloadTooLarge(err error) bool {
	var pe *PayloadTooLargeError
	return errors.As(err, &pe)
}

// ProblemDetail is an RFC 9457 problem details response body.
//
//nolint:errname // RFC 9457 standard name
type ProblemDetail struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Error returns the detail message (or title if detail is empty).
func (p *ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// StatusCode returns the HTTP status code.
func (p *ProblemDetail) StatusCode() int { return p.Status }

// WriteProblem writes err as an RFC 9457 problem details response. The status
// comes from the error's StatusCoder implementation, defaulting to 500.
// Hosts that surface a mid-stream violation from a handler can reuse this to
// produce the same response the middleware writes on the fast path.
func WriteProblem(w http.ResponseWriter, err error) {
	status := errorStatus(err)

	var pd *ProblemDetail
	if errors.As(err, &pd) {
		writeProblemJSON(w, pd)
		return
	}

	writeProblemJSON(w, &ProblemDetail{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: err.Error(),
	})
}

func writeProblemJSON(w http.ResponseWriter, pd *ProblemDetail) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(pd.Status)
	//nolint:errcheck,errchkjson,gosec // best-effort after WriteHeader
	json.NewEncoder(w).Encode(pd)
}

// errorStatus extracts the HTTP status code from an error. Returns
// http.StatusInternalServerError if the error does not implement StatusCoder.
func errorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}
