package bodylimit

import "io"

// readerState tracks where a Reader is in its lifecycle. Both exhausted and
// exceeded are terminal: no transition leaves them.
type readerState int

const (
	stateReading readerState = iota
	stateExhausted
	stateExceeded
)

// Reader wraps a request body and enforces a byte ceiling as the body is
// consumed. It counts delivered bytes and fails closed: the chunk that would
// push the total over the limit is never handed to the caller, and every read
// after a violation repeats the same error.
//
// A Reader owns its inner stream and belongs to a single request; it is not
// safe for concurrent use and never needs to be, matching how request bodies
// are consumed.
type Reader struct {
	inner    io.ReadCloser
	limit    int64
	consumed int64

	state    readerState
	err      *PayloadTooLargeError
	callback func(error)
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithCallback registers fn to run exactly once when the stream reaches a
// terminal state: nil if the body was fully read within the limit, the
// violation error if the limit was breached. Transport errors abandon the
// stream without firing fn.
func WithCallback(fn func(error)) ReaderOption {
	return func(r *Reader) {
		r.callback = fn
	}
}

// NewReader wraps body with the limit from policy. The policy's value is
// copied, so later policy changes do not affect this reader.
func NewReader(body io.ReadCloser, policy Policy, opts ...ReaderOption) *Reader {
	r := &Reader{
		inner: body,
		limit: policy.MaxBytes(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read pulls the next chunk from the inner stream and applies the limit
// check in arrival order. When a chunk would push the delivered total past
// the limit it is discarded — already pulled from the transport, it cannot
// be un-read — and Read returns a *PayloadTooLargeError instead. Inner I/O
// errors other than io.EOF pass through unchanged.
func (r *Reader) Read(p []byte) (int, error) {
	switch r.state {
	case stateExceeded:
		return 0, r.err
	case stateExhausted:
		return 0, io.EOF
	}

	n, err := r.inner.Read(p)
	if n > 0 {
		if r.consumed+int64(n) > r.limit {
			r.err = &PayloadTooLargeError{Limit: r.limit, Size: r.consumed + int64(n)}
			r.terminal(stateExceeded, r.err)
			return 0, r.err
		}
		r.consumed += int64(n)
	}

	if err == io.EOF {
		r.terminal(stateExhausted, nil)
	}
	return n, err
}

// Consumed returns the number of bytes delivered to the caller so far.
// A discarded over-limit chunk is never counted.
func (r *Reader) Consumed() int64 { return r.consumed }

// Close releases the inner stream. Safe to call in any state.
func (r *Reader) Close() error { return r.inner.Close() }

// terminal moves the reader into a terminal state and fires the callback
// exactly once.
func (r *Reader) terminal(s readerState, err error) {
	r.state = s
	if r.callback != nil {
		fn := r.callback
		r.callback = nil
		fn(err)
	}
}
