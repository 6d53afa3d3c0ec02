package main

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/tsawler/pdfrange/pages"
)

func pageFlags() *cli.Command {
	return &cli.Command{
		Name:      "page",
		Usage:     "show one page, fetching only its path through the page tree",
		ArgsUsage: "LOCATION NUMBER",
		Action:    page,
		Flags: append(documentFlags(),
			&cli.BoolFlag{
				Name:  "load",
				Usage: "also load the page resources and content streams",
			},
		),
	}
}

func page(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return errors.New("LOCATION and NUMBER are needed")
	}
	number, err := strconv.Atoi(c.Args().Get(1))
	if err != nil || number < 1 {
		return errors.Errorf("invalid page number %q", c.Args().Get(1))
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	doc, cleanup, err := openDocument(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	catalog, err := doc.Catalog()
	if err != nil {
		return err
	}
	tree, err := pages.NewCatalog(catalog, doc).PageTree(ctx)
	if err != nil {
		return err
	}
	p, err := tree.GetPage(ctx, number-1)
	if err != nil {
		return errors.Wrapf(err, "page %d", number)
	}
	// GetPage walks the tree even when /Count is missing.
	total := "?"
	if count, err := tree.Count(); err == nil {
		total = strconv.Itoa(count)
	}

	printf(c, "Page:     %d of %s (%s)\n", number, total, p.Ref)
	if box, err := p.MediaBox(ctx); err == nil {
		printf(c, "MediaBox: %v\n", box)
	}
	printf(c, "Rotate:   %d\n", p.Rotate(ctx))

	if c.Bool("load") {
		if err := p.LoadResources(ctx, doc); err != nil {
			return errors.Wrap(err, "load resources")
		}
		if err := p.LoadContents(ctx, doc); err != nil {
			return errors.Wrap(err, "load contents")
		}
		contents, err := p.Contents(ctx)
		if err != nil {
			return err
		}
		printf(c, "Contents: %d streams\n", len(contents))
	}
	if s := doc.Stream(); s != nil {
		printf(c, "Chunks:   %d of %d loaded\n", s.NumChunksLoaded(), s.NumChunks())
	}
	return nil
}
