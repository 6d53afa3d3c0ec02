package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/tsawler/pdfrange"
	"github.com/tsawler/pdfrange/reader"
	"github.com/tsawler/pdfrange/transport"
)

// documentFlags are shared by every command that opens a document.
func documentFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "chunk-size",
			Value:   64 * 1024,
			Usage:   "size of the ranges the document is fetched in",
			EnvVars: []string{"PDFRANGE_CHUNK_SIZE"},
		},
		&cli.BoolFlag{
			Name:    "no-read-ahead",
			Usage:   "fetch only the ranges the parser needs",
			EnvVars: []string{"PDFRANGE_NO_READ_AHEAD"},
		},
		&cli.BoolFlag{
			Name:    "progressive",
			Usage:   "stream the whole body alongside range requests",
			EnvVars: []string{"PDFRANGE_PROGRESSIVE"},
		},
		&cli.Int64Flag{
			Name:    "download-limit",
			Usage:   "bandwidth limit for download in Mbps (0 means unlimited)",
			EnvVars: []string{"PDFRANGE_DOWNLOAD_LIMIT"},
		},
		&cli.IntFlag{
			Name:    "retries",
			Value:   3,
			Usage:   "number of retries for failed HTTP requests",
			EnvVars: []string{"PDFRANGE_RETRIES"},
		},
		&cli.StringFlag{
			Name:    "redis",
			Usage:   "redis URL of a shared range cache (e.g. redis://localhost:6379/1)",
			EnvVars: []string{"PDFRANGE_REDIS"},
		},
		&cli.StringFlag{
			Name:    "compress",
			Value:   "none",
			Usage:   "compression algorithm for cached ranges (lz4, zstd, none)",
			EnvVars: []string{"PDFRANGE_COMPRESS"},
		},
		&cli.DurationFlag{
			Name:    "cache-ttl",
			Usage:   "expiry of cached ranges (0 means never)",
			EnvVars: []string{"PDFRANGE_CACHE_TTL"},
		},
		&cli.StringFlag{
			Name:    "sftp-password",
			Usage:   "password or key passphrase for sftp locations",
			EnvVars: []string{"PDFRANGE_SFTP_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "sftp-key",
			Usage:   "private key file for sftp locations",
			EnvVars: []string{"PDFRANGE_SFTP_KEY"},
		},
		&cli.StringFlag{
			Name:    "sftp-known-hosts",
			Usage:   "known_hosts file used to verify sftp servers",
			EnvVars: []string{"PDFRANGE_SFTP_KNOWN_HOSTS"},
		},
	}
}

// openDocument opens the location named by the first argument using the
// document flags. The returned cleanup closes the document and the cache.
func openDocument(ctx context.Context, c *cli.Context) (*pdfrange.Document, func(), error) {
	if c.Args().Len() < 1 {
		return nil, nil, errors.New("LOCATION is needed")
	}
	location := c.Args().First()

	ropts := []reader.Option{
		reader.WithChunkSize(c.Int("chunk-size")),
		reader.WithProgress(func(loaded, total int64) {
			logger.Debugf("loaded %d of %d bytes", loaded, total)
		}),
	}
	if c.Bool("no-read-ahead") {
		ropts = append(ropts, reader.WithDisableAutoFetch())
	}

	opts := []pdfrange.Option{
		pdfrange.WithReaderOptions(ropts...),
		pdfrange.WithHTTPOptions(transport.WithRetries(c.Int("retries"))),
		pdfrange.WithRateLimit(c.Int64("download-limit") * 1e6 / 8),
		pdfrange.WithSFTPConfig(transport.SFTPConfig{
			Password:   c.String("sftp-password"),
			KeyFile:    c.String("sftp-key"),
			KnownHosts: c.String("sftp-known-hosts"),
		}),
	}
	if c.Bool("progressive") {
		opts = append(opts, pdfrange.WithProgressiveLoading())
	}

	var rdb *redis.Client
	if addr := c.String("redis"); addr != "" {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "parse redis URL")
		}
		rdb = redis.NewClient(opt)
		opts = append(opts, pdfrange.WithRedisCache(rdb, c.String("compress"), c.Duration("cache-ttl")))
	}

	doc, err := pdfrange.Open(ctx, location, opts...)
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, nil, errors.Wrapf(err, "open %s", location)
	}
	cleanup := func() {
		if s := doc.Stream(); s != nil {
			logger.Debugf("fetched %d of %d chunks", s.NumChunksLoaded(), s.NumChunks())
		}
		doc.Close()
		if rdb != nil {
			rdb.Close()
		}
	}
	return doc, cleanup, nil
}

func printf(c *cli.Context, format string, args ...interface{}) {
	fmt.Fprintf(c.App.Writer, format, args...)
}
