// Package pdfrange opens PDF documents over HTTP, SFTP or the local file
// system and loads them progressively: only the byte ranges the parser
// touches are fetched.
//
// Basic usage:
//
//	doc, err := pdfrange.Open(ctx, "https://example.com/report.pdf")
//	if err != nil {
//	    // handle error
//	}
//	defer doc.Close()
//
//	info, err := doc.Info(ctx)
//
// With options:
//
//	doc, err := pdfrange.Open(ctx, "sftp://build@files:22/out/report.pdf",
//	    pdfrange.WithSFTPConfig(transport.SFTPConfig{KeyFile: "id_ed25519"}),
//	    pdfrange.WithRateLimit(1<<20),
//	    pdfrange.WithReaderOptions(reader.WithChunkSize(128*1024)))
//
// For advanced use cases, the lower-level reader, chunked and transport
// packages are also available.
package pdfrange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"

	"github.com/tsawler/pdfrange/reader"
	"github.com/tsawler/pdfrange/transport"
)

// ErrUnsupportedScheme is returned for a location Open cannot serve.
var ErrUnsupportedScheme = errors.New("unsupported location scheme")

// Document is an open document session together with its transport.
type Document struct {
	*reader.Reader

	transport transport.Transport
	stream    io.ReadCloser
}

// Open opens the document at location. http and https URLs are fetched with
// range requests, sftp URLs over SSH, and file URLs or plain paths from the
// local file system.
//
// The returned Document must be closed when done.
func Open(ctx context.Context, location string, opts ...Option) (*Document, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	t, key, err := openTransport(ctx, location, o)
	if err != nil {
		return nil, err
	}
	t = transport.NewLimited(t, o.rateLimit)
	if o.redis != nil {
		t = transport.NewRedisCache(t, o.redis, key,
			transport.WithCompression(o.compression),
			transport.WithTTL(o.cacheTTL))
	}

	doc := &Document{transport: t}
	length, err := t.Length(ctx)
	if err != nil {
		doc.Close()
		return nil, fmt.Errorf("failed to get length of %s: %w", key, err)
	}

	ropts := o.reader
	if o.progressive {
		if s, ok := t.(transport.Streamer); ok {
			doc.stream, err = s.Stream(ctx)
			if err != nil {
				doc.Close()
				return nil, fmt.Errorf("failed to stream %s: %w", key, err)
			}
			ropts = append(ropts[:len(ropts):len(ropts)], reader.WithProgressive(doc.stream))
		}
	}

	doc.Reader, err = reader.NewNetwork(ctx, t, length, ropts...)
	if err != nil {
		doc.Close()
		return nil, err
	}
	return doc, nil
}

// openTransport returns the transport for location and the cache key that
// identifies the document, which never carries credentials.
func openTransport(ctx context.Context, location string, o options) (transport.Transport, string, error) {
	u, err := url.Parse(location)
	// A drive letter parses as a one letter scheme.
	if err != nil || len(u.Scheme) <= 1 {
		t, err := transport.OpenFile(location)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open %s: %w", location, err)
		}
		return t, "file://" + location, nil
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return transport.NewHTTP(location, o.http...), u.Redacted(), nil

	case "file":
		t, err := transport.OpenFile(u.Path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open %s: %w", u.Path, err)
		}
		return t, "file://" + u.Path, nil

	case "sftp":
		cfg := o.sftp
		cfg.Addr = u.Host
		if u.Port() == "" {
			cfg.Addr = net.JoinHostPort(u.Hostname(), "22")
		}
		if u.User != nil {
			cfg.User = u.User.Username()
			if pw, ok := u.User.Password(); ok {
				cfg.Password = pw
			}
		}
		t, err := transport.DialSFTP(ctx, cfg, u.Path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open %s: %w", u.Redacted(), err)
		}
		key := *u
		key.User = nil
		return t, key.String(), nil
	}
	return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
}

// Transport returns the transport the document is read through
func (d *Document) Transport() transport.Transport {
	return d.transport
}

// Close aborts outstanding requests and releases the transport
func (d *Document) Close() error {
	if d.Reader != nil {
		d.Reader.Close()
	}
	if d.stream != nil {
		d.stream.Close()
	}
	return d.transport.Close()
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil. It is intended for use in scripts
// or tests where error handling would be cumbersome.
//
// Example:
//
//	doc := pdfrange.Must(pdfrange.Open(ctx, "document.pdf"))
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}
