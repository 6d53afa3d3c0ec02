package main

import (
	"sort"

	"github.com/urfave/cli/v2"
)

func infoFlags() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "show version, trailer and document information",
		ArgsUsage: "LOCATION",
		Action:    info,
		Flags:     documentFlags(),
	}
}

func info(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	doc, cleanup, err := openDocument(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	printf(c, "Location: %s\n", c.Args().First())
	printf(c, "Session:  %s\n", doc.ID())
	printf(c, "Version:  %s\n", doc.Version())
	printf(c, "Length:   %d\n", doc.Length())
	printf(c, "Objects:  %d\n", doc.NumObjects())
	uncompressed, compressed := doc.XRef().Stats()
	printf(c, "Parsed:   %d objects, %d object streams\n", uncompressed, compressed)
	printf(c, "Trailer:  %s\n", doc.Trailer())
	if doc.XRef().Encrypted() {
		printf(c, "Encrypted: yes\n")
	}

	meta, err := doc.Info(ctx)
	if err != nil {
		logger.Warnf("read info dictionary: %s", err)
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		printf(c, "  %s: %s\n", k, meta[k])
	}

	if s := doc.Stream(); s != nil {
		printf(c, "Chunks:   %d of %d loaded (%d bytes each)\n", s.NumChunksLoaded(), s.NumChunks(), s.ChunkSize())
	}
	return nil
}
