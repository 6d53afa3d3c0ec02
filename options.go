package pdfrange

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tsawler/pdfrange/reader"
	"github.com/tsawler/pdfrange/transport"
)

// options holds the configuration of Open.
type options struct {
	reader      []reader.Option
	http        []transport.HTTPOption
	sftp        transport.SFTPConfig
	rateLimit   int64
	redis       redis.UniversalClient
	compression string
	cacheTTL    time.Duration
	progressive bool
}

// defaultOptions returns the default options.
func defaultOptions() options {
	return options{
		compression: "none",
	}
}

// Option configures Open.
type Option func(*options)

// WithReaderOptions passes options through to the document reader.
func WithReaderOptions(opts ...reader.Option) Option {
	return func(o *options) {
		o.reader = append(o.reader, opts...)
	}
}

// WithHTTPOptions configures the HTTP transport of http and https locations.
func WithHTTPOptions(opts ...transport.HTTPOption) Option {
	return func(o *options) {
		o.http = append(o.http, opts...)
	}
}

// WithSFTPConfig sets credentials for sftp locations. Addr and User are
// taken from the location when it names them.
func WithSFTPConfig(cfg transport.SFTPConfig) Option {
	return func(o *options) {
		o.sftp = cfg
	}
}

// WithRateLimit caps download bandwidth in bytes per second.
func WithRateLimit(bytesPerSecond int64) Option {
	return func(o *options) {
		o.rateLimit = bytesPerSecond
	}
}

// WithRedisCache shares fetched ranges through rdb, compressed with
// compression ("none", "lz4" or "zstd"). A zero ttl never expires.
func WithRedisCache(rdb redis.UniversalClient, compression string, ttl time.Duration) Option {
	return func(o *options) {
		o.redis = rdb
		o.compression = compression
		o.cacheTTL = ttl
	}
}

// WithProgressiveLoading streams the whole body alongside range requests
// when the transport supports it.
func WithProgressiveLoading() Option {
	return func(o *options) {
		o.progressive = true
	}
}
