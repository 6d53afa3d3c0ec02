package main

import (
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func loadFlags() *cli.Command {
	return &cli.Command{
		Name:      "load",
		Usage:     "load the objects reachable from catalog keys, or the whole document",
		ArgsUsage: "LOCATION",
		Action:    load,
		Flags: append(documentFlags(),
			&cli.StringSliceFlag{
				Name:  "key",
				Usage: "catalog key whose subgraph is loaded (repeatable, default: the whole document)",
			},
		),
	}
}

func load(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	doc, cleanup, err := openDocument(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	start := time.Now()
	if keys := c.StringSlice("key"); len(keys) > 0 {
		catalog, err := doc.Catalog()
		if err != nil {
			return err
		}
		if err := doc.LoadObjects(ctx, catalog, keys...); err != nil {
			return errors.Wrapf(err, "load %v", keys)
		}
	} else if err := doc.LoadAll(ctx); err != nil {
		return errors.Wrap(err, "load document")
	}
	used := time.Since(start)

	if s := doc.Stream(); s != nil {
		printf(c, "loaded %d of %d chunks (%d of %d bytes) in %s\n",
			s.NumChunksLoaded(), s.NumChunks(), loadedBytes(s.NumChunksLoaded(), s.ChunkSize(), s.Length()), s.Length(), used)
	}
	return nil
}

func loadedBytes(chunks, chunkSize int, length int64) int64 {
	n := int64(chunks) * int64(chunkSize)
	if n > length {
		n = length
	}
	return n
}
