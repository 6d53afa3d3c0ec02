package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/net/netutil"
)

func serveFlags() *cli.Command {
	return &cli.Command{
		Name:      "serve",
		Usage:     "serve a directory of documents with HTTP range support",
		ArgsUsage: "DIR",
		Action:    serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Value:   "127.0.0.1:8080",
				Usage:   "address to listen on",
				EnvVars: []string{"PDFRANGE_LISTEN"},
			},
			&cli.IntFlag{
				Name:    "max-conns",
				Value:   64,
				Usage:   "maximum number of concurrent connections",
				EnvVars: []string{"PDFRANGE_MAX_CONNS"},
			},
		},
	}
}

// newRouter serves the files under dir. Range and HEAD requests are handled
// by http.FileServer.
func newRouter(dir string, log logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	files := http.FileServer(http.Dir(dir))
	r.Get("/*", files.ServeHTTP)
	r.Head("/*", files.ServeHTTP)
	return r
}

// requestLogger logs incoming requests.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"id":     middleware.GetReqID(r.Context()),
				"range":  r.Header.Get("Range"),
				"status": ww.Status(),
				"bytes":  ww.BytesWritten(),
			}).Debugf("%s %s in %s", r.Method, r.URL.Path, time.Since(start))
		})
	}
}

func serve(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return errors.New("DIR is needed")
	}
	dir := c.Args().First()
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return errors.Errorf("%s is not a directory", dir)
	}

	ln, err := net.Listen("tcp", c.String("listen"))
	if err != nil {
		return errors.Wrapf(err, "listen on %s", c.String("listen"))
	}
	if n := c.Int("max-conns"); n > 0 {
		ln = netutil.LimitListener(ln, n)
	}

	srv := &http.Server{
		Handler:      newRouter(dir, logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := signalContext(c)
	defer cancel()
	go func() {
		<-ctx.Done()
		logger.Infof("shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("serving %s on http://%s", dir, ln.Addr())
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "serve")
	}
	return nil
}
