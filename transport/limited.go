package transport

import (
	"context"
	"io"
	"time"

	"github.com/juju/ratelimit"
)

// Limited caps the download bandwidth of a transport.
type Limited struct {
	Transport
	bucket *ratelimit.Bucket
}

var _ Streamer = (*Limited)(nil)

// NewLimited wraps t so that at most bytesPerSecond bytes are delivered per
// second. A limit of zero or less returns t unchanged.
func NewLimited(t Transport, bytesPerSecond int64) Transport {
	if bytesPerSecond <= 0 {
		return t
	}
	// there are overheads coming from HTTP/TCP/IP
	return &Limited{t, ratelimit.NewBucketWithRate(float64(bytesPerSecond)*0.85, bytesPerSecond)}
}

func (l *Limited) FetchRange(ctx context.Context, begin, end int64) ([]byte, error) {
	data, err := l.Transport.FetchRange(ctx, begin, end)
	if err != nil {
		return nil, err
	}
	if err := wait(ctx, l.bucket, int64(len(data))); err != nil {
		return nil, err
	}
	return data, nil
}

// Stream limits the underlying stream, if there is one.
func (l *Limited) Stream(ctx context.Context) (io.ReadCloser, error) {
	s, ok := l.Transport.(Streamer)
	if !ok {
		return nil, ErrNoStream
	}
	rc, err := s.Stream(ctx)
	if err != nil {
		return nil, err
	}
	return &limitedReader{rc, l.bucket, ctx}, nil
}

func wait(ctx context.Context, b *ratelimit.Bucket, n int64) error {
	d := b.Take(n)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type limitedReader struct {
	io.ReadCloser
	r   *ratelimit.Bucket
	ctx context.Context
}

func (l *limitedReader) Read(buf []byte) (int, error) {
	n, err := l.ReadCloser.Read(buf)
	if werr := wait(l.ctx, l.r, int64(n)); werr != nil {
		return n, werr
	}
	return n, err
}
