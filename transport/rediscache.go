package transport

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tsawler/pdfrange/internal/compress"
)

// RedisCache serves byte ranges from Redis and fills it from an underlying
// transport on a miss. Ranges are keyed by document and exact offsets, so
// sessions that use the same chunk size share entries. Cache failures are
// logged and bypassed.
type RedisCache struct {
	Transport
	rdb    redis.UniversalClient
	prefix string
	codec  compress.Compressor
	ttl    time.Duration
}

// CacheOption configures a RedisCache.
type CacheOption func(*RedisCache)

// WithCompression sets the codec for stored ranges: "none", "lz4" or "zstd".
func WithCompression(algr string) CacheOption {
	return func(c *RedisCache) {
		if codec := compress.NewCompressor(algr); codec != nil {
			c.codec = codec
		} else {
			logger.Warnf("unknown compression %q, storing ranges uncompressed", algr)
		}
	}
}

// WithTTL sets the expiry of cached entries (default: no expiry).
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *RedisCache) { c.ttl = ttl }
}

// NewRedisCache wraps t. key identifies the document, typically its URL.
func NewRedisCache(t Transport, rdb redis.UniversalClient, key string, opts ...CacheOption) *RedisCache {
	c := &RedisCache{
		Transport: t,
		rdb:       rdb,
		prefix:    "pdfrange:" + key,
		codec:     compress.NewCompressor("none"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) rangeKey(begin, end int64) string {
	return fmt.Sprintf("%s:%s:%d-%d", c.prefix, c.codec.Name(), begin, end)
}

func (c *RedisCache) Length(ctx context.Context) (int64, error) {
	key := c.prefix + ":length"
	v, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, nil
		}
	} else if err != redis.Nil {
		logger.Warnf("get %s: %s", key, err)
	}

	n, err := c.Transport.Length(ctx)
	if err != nil {
		return n, err
	}
	if err := c.rdb.Set(ctx, key, n, c.ttl).Err(); err != nil {
		logger.Warnf("set %s: %s", key, err)
	}
	return n, nil
}

func (c *RedisCache) FetchRange(ctx context.Context, begin, end int64) ([]byte, error) {
	key := c.rangeKey(begin, end)
	if data, ok := c.load(ctx, key, int(end-begin)); ok {
		logger.Debugf("cache hit %s", key)
		return data, nil
	}

	data, err := c.Transport.FetchRange(ctx, begin, end)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, data)
	return data, nil
}

func (c *RedisCache) load(ctx context.Context, key string, size int) ([]byte, bool) {
	v, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Warnf("get %s: %s", key, err)
		return nil, false
	}
	data := make([]byte, size)
	n, err := c.codec.Decompress(data, v)
	if err != nil || n != size {
		logger.Warnf("corrupt cache entry %s: %d bytes, %v", key, n, err)
		return nil, false
	}
	return data, true
}

func (c *RedisCache) store(ctx context.Context, key string, data []byte) {
	buf := make([]byte, c.codec.CompressBound(len(data)))
	n, err := c.codec.Compress(buf, data)
	if err != nil {
		logger.Warnf("compress %s: %s", key, err)
		return
	}
	if err := c.rdb.Set(ctx, key, buf[:n], c.ttl).Err(); err != nil {
		logger.Warnf("set %s: %s", key, err)
	}
}

// Stream passes through to the underlying transport.
func (c *RedisCache) Stream(ctx context.Context) (io.ReadCloser, error) {
	s, ok := c.Transport.(Streamer)
	if !ok {
		return nil, ErrNoStream
	}
	return s.Stream(ctx)
}
