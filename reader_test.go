package bodylimit_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/bodylimit"
	"github.com/bjaus/bodylimit/limittest"
)

func TestReader(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		limit   int64
		body    int
		chunk   int
		wantErr bool
	}{
		"body below limit reads fully": {
			limit: 1024,
			body:  512,
			chunk: 100,
		},
		"body at exact limit reads fully": {
			limit: 1024,
			body:  1024,
			chunk: 128,
		},
		"single read at exact limit": {
			limit: 64,
			body:  64,
			chunk: 64,
		},
		"body one byte over limit fails": {
			limit:   1024,
			body:    1025,
			chunk:   128,
			wantErr: true,
		},
		"empty body with zero limit": {
			limit: 0,
			body:  0,
			chunk: 1,
		},
		"nonempty body with zero limit fails": {
			limit:   0,
			body:    1,
			chunk:   1,
			wantErr: true,
		},
		"negative limit behaves as zero": {
			limit:   -5,
			body:    1,
			chunk:   1,
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			data := make([]byte, tc.body)
			for i := range data {
				data[i] = byte(i)
			}

			r := bodylimit.NewReader(limittest.Chunked(data, tc.chunk), bodylimit.NewPolicy(tc.limit))
			got, err := io.ReadAll(r)

			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, bodylimit.IsPayloadTooLarge(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, data, got)
			}

			// Whatever the outcome, nothing past the limit was delivered.
			allowed := max(tc.limit, 0)
			assert.LessOrEqual(t, int64(len(got)), allowed)
			assert.Equal(t, data[:len(got)], got)
			assert.Equal(t, int64(len(got)), r.Consumed())
		})
	}
}

func TestReader_never_delivers_overflowing_chunk(t *testing.T) {
	t.Parallel()

	// A 5000-byte body arriving in 1000-byte chunks against a 4096-byte
	// limit: four chunks fit, the fifth would bring the total to 5000 and
	// must be withheld entirely, not trimmed to the 96 remaining bytes.
	body := limittest.Chunked(bytes.Repeat([]byte("a"), 5000), 1000)
	r := bodylimit.NewReader(body, bodylimit.NewPolicy(4096))

	buf := make([]byte, 1000)
	for range 4 {
		n, err := r.Read(buf)
		require.NoError(t, err)
		require.Equal(t, 1000, n)
	}

	n, err := r.Read(buf)
	assert.Zero(t, n)

	var pe *bodylimit.PayloadTooLargeError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, int64(4096), pe.Limit)
	assert.Equal(t, int64(5000), pe.Size)
	assert.EqualError(t, err, "request body too large: 5000 bytes exceeds the 4096 byte limit")
	assert.Equal(t, int64(4000), r.Consumed())
}

func TestReader_terminal_states(t *testing.T) {
	t.Parallel()

	t.Run("exceeded is sticky", func(t *testing.T) {
		t.Parallel()

		r := bodylimit.NewReader(limittest.Chunked([]byte("abcdef"), 2), bodylimit.NewPolicy(3))
		buf := make([]byte, 2)

		_, err := r.Read(buf)
		require.NoError(t, err)

		_, err = r.Read(buf)
		require.Error(t, err)

		for range 3 {
			n, repeatErr := r.Read(buf)
			assert.Zero(t, n)
			assert.Same(t, err, repeatErr)
		}
		assert.Equal(t, int64(2), r.Consumed())
	})

	t.Run("exhausted is sticky", func(t *testing.T) {
		t.Parallel()

		r := bodylimit.NewReader(limittest.Chunked([]byte("abc"), 3), bodylimit.NewPolicy(16))
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "abc", string(got))

		for range 3 {
			n, err := r.Read(make([]byte, 8))
			assert.Zero(t, n)
			assert.ErrorIs(t, err, io.EOF)
		}
		assert.Equal(t, int64(3), r.Consumed())
	})
}

func TestReader_final_chunk_with_eof(t *testing.T) {
	t.Parallel()

	t.Run("within limit delivers data with eof", func(t *testing.T) {
		t.Parallel()

		inner := io.NopCloser(iotest.DataErrReader(strings.NewReader("1234")))
		r := bodylimit.NewReader(inner, bodylimit.NewPolicy(4))

		n, err := r.Read(make([]byte, 8))
		assert.Equal(t, 4, n)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, int64(4), r.Consumed())
	})

	t.Run("limit check wins over simultaneous eof", func(t *testing.T) {
		t.Parallel()

		inner := io.NopCloser(iotest.DataErrReader(strings.NewReader("12345")))
		r := bodylimit.NewReader(inner, bodylimit.NewPolicy(4))

		n, err := r.Read(make([]byte, 8))
		assert.Zero(t, n)
		assert.True(t, bodylimit.IsPayloadTooLarge(err))
	})
}

func TestReader_callback(t *testing.T) {
	t.Parallel()

	t.Run("fires nil once on exhaustion", func(t *testing.T) {
		t.Parallel()

		rec := &limittest.Recorder{}
		r := bodylimit.NewReader(limittest.Chunked([]byte("abc"), 2), bodylimit.NewPolicy(8),
			bodylimit.WithCallback(rec.Observe))

		_, err := io.ReadAll(r)
		require.NoError(t, err)

		// Further reads must not re-fire the callback.
		_, _ = r.Read(make([]byte, 4))

		calls := rec.Calls()
		require.Len(t, calls, 1)
		assert.NoError(t, calls[0])
	})

	t.Run("fires violation once", func(t *testing.T) {
		t.Parallel()

		rec := &limittest.Recorder{}
		r := bodylimit.NewReader(limittest.Chunked([]byte("abcd"), 4), bodylimit.NewPolicy(2),
			bodylimit.WithCallback(rec.Observe))

		_, err := r.Read(make([]byte, 8))
		require.Error(t, err)
		_, _ = r.Read(make([]byte, 8))
		_, _ = r.Read(make([]byte, 8))

		calls := rec.Calls()
		require.Len(t, calls, 1)
		assert.Same(t, err, calls[0])
	})

	t.Run("not fired on transport error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		rec := &limittest.Recorder{}
		r := bodylimit.NewReader(io.NopCloser(iotest.ErrReader(boom)), bodylimit.NewPolicy(8),
			bodylimit.WithCallback(rec.Observe))

		_, err := r.Read(make([]byte, 4))
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, rec.Calls())
	})
}

func TestReader_passes_through_transport_errors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	r := bodylimit.NewReader(io.NopCloser(iotest.ErrReader(boom)), bodylimit.NewPolicy(8))

	_, err := r.Read(make([]byte, 4))
	require.ErrorIs(t, err, boom)
	assert.False(t, bodylimit.IsPayloadTooLarge(err))

	// A transport error is not a terminal state: the next read consults the
	// inner stream again rather than replaying a latched error.
	_, err = r.Read(make([]byte, 4))
	assert.ErrorIs(t, err, boom)
}

func TestReader_huge_stream_cut_off(t *testing.T) {
	t.Parallel()

	// A logical 1 GiB body against a 1 MiB limit. The reader holds no
	// buffer of its own, so this stays cheap no matter the body size.
	const limit = 1 << 20
	r := bodylimit.NewReader(limittest.Repeat('a', 1<<30, 32<<10), bodylimit.NewPolicy(limit))

	buf := make([]byte, 32<<10)
	var err error
	for err == nil {
		_, err = r.Read(buf)
	}

	require.True(t, bodylimit.IsPayloadTooLarge(err))
	assert.LessOrEqual(t, r.Consumed(), int64(limit))
}

func TestReader_close_closes_inner(t *testing.T) {
	t.Parallel()

	spy := &closeSpy{Reader: strings.NewReader("abc")}
	r := bodylimit.NewReader(spy, bodylimit.NewPolicy(8))

	require.NoError(t, r.Close())
	assert.Equal(t, 1, spy.closed)
}

type closeSpy struct {
	io.Reader
	closed int
}

func (c *closeSpy) Close() error {
	c.closed++
	return nil
}
