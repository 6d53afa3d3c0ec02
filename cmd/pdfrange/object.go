package main

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/tsawler/pdfrange/core"
	"github.com/tsawler/pdfrange/resolver"
)

func objectFlags() *cli.Command {
	return &cli.Command{
		Name:      "object",
		Usage:     "print one object, loading only the ranges it needs",
		ArgsUsage: "LOCATION NUM [GEN]",
		Action:    object,
		Flags: append(documentFlags(),
			&cli.BoolFlag{
				Name:  "deep",
				Usage: "resolve nested references",
			},
			&cli.IntFlag{
				Name:  "max-depth",
				Value: 100,
				Usage: "maximum nesting followed by --deep",
			},
		),
	}
}

func object(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return errors.New("LOCATION and NUM are needed")
	}
	num, err := strconv.Atoi(c.Args().Get(1))
	if err != nil {
		return errors.Wrapf(err, "invalid object number %q", c.Args().Get(1))
	}
	gen := 0
	if c.Args().Len() > 2 {
		if gen, err = strconv.Atoi(c.Args().Get(2)); err != nil {
			return errors.Wrapf(err, "invalid generation %q", c.Args().Get(2))
		}
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	doc, cleanup, err := openDocument(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	ref := core.IndirectRef{Number: num, Generation: gen}
	var obj core.Object
	if c.Bool("deep") {
		obj, err = doc.Resolver(ctx, resolver.WithMaxDepth(c.Int("max-depth"))).ResolveReferenceDeep(ref)
	} else {
		obj, err = doc.Fetch(ctx, ref)
	}
	if err != nil {
		return errors.Wrapf(err, "fetch %s", ref)
	}

	printf(c, "%s = %s\n", ref, obj)
	if s, ok := obj.(*core.Stream); ok && c.Bool("deep") {
		data, err := s.Decode()
		if err != nil {
			return errors.Wrapf(err, "decode %s", ref)
		}
		printf(c, "stream: %d bytes decoded\n", len(data))
	}
	return nil
}
