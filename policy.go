package bodylimit

// Policy is an immutable body-size limit, constructed once at startup and
// shared read-only across all requests. Each Reader copies the limit at
// construction time, so swapping policies never affects in-flight requests.
type Policy struct {
	maxBytes int64
}

// NewPolicy returns a policy permitting bodies of at most maxBytes bytes.
// Construction never fails: a negative value is clamped to zero, and zero is
// a legal policy meaning no request may carry a nonempty body.
func NewPolicy(maxBytes int64) Policy {
	if maxBytes < 0 {
		maxBytes = 0
	}
	return Policy{maxBytes: maxBytes}
}

// MaxBytes returns the maximum permitted body size in bytes.
func (p Policy) MaxBytes() int64 { return p.maxBytes }
