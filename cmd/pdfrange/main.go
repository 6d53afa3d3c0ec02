package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/gops/agent"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/tsawler/pdfrange/internal/logging"
)

var logger = logging.GetLogger("pdfrange")

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                 "pdfrange",
		Usage:                "inspect PDF documents by fetching only the bytes that are needed",
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"debug", "v"},
				Usage:   "enable debug log",
				EnvVars: []string{"PDFRANGE_VERBOSE"},
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "only warning and errors",
				EnvVars: []string{"PDFRANGE_QUIET"},
			},
			&cli.BoolFlag{
				Name:    "gops",
				Usage:   "start a gops agent for runtime diagnostics",
				EnvVars: []string{"PDFRANGE_GOPS"},
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			infoFlags(),
			objectFlags(),
			loadFlags(),
			pageFlags(),
			serveFlags(),
		},
	}
}

func setup(c *cli.Context) error {
	if c.Bool("verbose") {
		logging.SetLevel(logrus.DebugLevel)
	} else if c.Bool("quiet") {
		logging.SetLevel(logrus.WarnLevel)
	}
	if c.Bool("gops") {
		if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
			logger.Warnf("start gops agent: %s", err)
		}
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
}
