// Command http1d serves HTTP/1.1 over TCP, either files from a directory
// or an echo of every request.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"http1d/application/http/actor/server"
	"http1d/application/web"
	"http1d/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

func main() {
	cfg, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if cfg.Fetch != "" {
		err = fetch(context.Background(), cfg, logger, os.Stdout)
	} else {
		err = run(cfg, logger)
	}
	if err != nil {
		if cfg.Debug {
			logger.Error("exiting", "error", fmt.Sprintf("%+v", err))
		} else {
			logger.Error("exiting", "error", err)
		}
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := transport.Listen(transport.ListenOptions{
		Address:   cfg.Address(),
		ReusePort: cfg.ReusePort,
	})
	if err != nil {
		return err
	}

	srv := server.New(lis, logger, clock.New(), newApp(cfg), cfg.ServerOptions())
	srv.Start()
	logger.Info("listening", "addr", srv.Addr().String(), "dir", cfg.Dir)

	<-ctx.Done()
	stop()
	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutting down")
	}
	return nil
}

func newApp(cfg Config) server.Dispatcher {
	var handler server.Dispatcher = web.EchoApp{}
	if cfg.Dir != "" {
		handler = &web.FileApp{FS: os.DirFS(cfg.Dir), MapBareNamesToHTML: cfg.MapHTML}
	}
	if cfg.Compress {
		handler = &web.Compress{Handler: handler}
	}
	return &web.App{Handler: handler, PreventCaching: cfg.NoCache}
}
