// Package transport provides the byte-range sources a network document is
// loaded through: HTTP range requests, local files, SFTP, memory, plus a
// bandwidth limiter and a shared Redis cache that wrap any of them.
package transport

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/tsawler/pdfrange/chunked"
)

// Transport is a random-access view of one document.
type Transport interface {
	chunked.Fetcher

	// Length returns the document size in bytes.
	Length(ctx context.Context) (int64, error)
	Close() error
}

// Streamer delivers the whole document in order from offset zero.
type Streamer interface {
	Stream(ctx context.Context) (io.ReadCloser, error)
}

// ErrNoStream is returned by wrappers whose underlying transport cannot
// stream.
var ErrNoStream = errors.New("transport: streaming not supported")

func checkRange(begin, end, length int64) error {
	if begin < 0 || end < begin || end > length {
		return errors.Errorf("invalid range [%d, %d) of %d bytes", begin, end, length)
	}
	return nil
}
