package reader

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/tsawler/pdfrange/chunked"
	"github.com/tsawler/pdfrange/core"
)

type options struct {
	chunkSize       int
	readAhead       chunked.ReadAhead
	progressive     io.Reader
	securityHandler core.SecurityHandler
	progress        func(loaded, total int64)
	log             logrus.FieldLogger
}

func defaultOptions() options {
	return options{
		chunkSize: chunked.DefaultChunkSize,
		readAhead: chunked.LastChunkFirst,
	}
}

// Option configures a Reader
type Option func(*options)

// WithChunkSize sets the size of the chunks a network document is fetched in
// (default: 65536)
func WithChunkSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.chunkSize = size
		}
	}
}

// WithReadAhead sets the strategy used to fetch chunks nobody asked for yet
func WithReadAhead(r chunked.ReadAhead) Option {
	return func(o *options) {
		o.readAhead = r
	}
}

// WithDisableAutoFetch stops speculative fetching. Only ranges the parser
// actually needs are requested.
func WithDisableAutoFetch() Option {
	return WithReadAhead(nil)
}

// WithProgressive streams r, the whole document body from offset zero, into
// the chunk store alongside range requests.
func WithProgressive(r io.Reader) Option {
	return func(o *options) {
		o.progressive = r
	}
}

// WithSecurityHandler sets the handler that turns an /Encrypt dictionary
// into per-object decryption.
func WithSecurityHandler(h core.SecurityHandler) Option {
	return func(o *options) {
		o.securityHandler = h
	}
}

// WithProgress registers a callback invoked as network data arrives
func WithProgress(fn func(loaded, total int64)) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithLogger sets the logger shared by the reader, its xref and its
// chunk manager
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = log
	}
}
