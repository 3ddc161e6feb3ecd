// Package bodylimit enforces request body size limits for HTTP servers. It
// rejects oversized requests early when the declared Content-Length already
// exceeds the limit, and cuts off every other body mid-stream the moment it
// runs past the limit — declared lengths are advisory, the streaming count
// is authoritative.
//
// The middleware uses the standard func(http.Handler) http.Handler signature,
// so it composes with the entire Go middleware ecosystem:
//
//	mux := chi.NewRouter()
//	mux.Use(bodylimit.New(1 << 20)) // 1 MiB
//
// Handlers see a violation as a *PayloadTooLargeError returned from
// r.Body.Read. Map it to a response directly, or let WriteProblem render the
// RFC 9457 problem+json form:
//
//	if _, err := io.Copy(dst, r.Body); err != nil {
//	    bodylimit.WriteProblem(w, err)
//	    return
//	}
//
// Reader is the underlying primitive and works on any io.ReadCloser, not just
// HTTP bodies. It counts bytes as the consumer reads and fails closed: the
// read that would cross the limit delivers nothing, and every read after that
// returns the same error. Memory cost is a few counters regardless of body
// size — nothing is buffered.
//
// Limits bound size, not time. A slow client can still hold a connection open
// within the limit; pair the middleware with server read timeouts.
package bodylimit
