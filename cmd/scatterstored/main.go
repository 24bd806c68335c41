// Package main is the entry point for scatterstored, the scatterstore
// gateway server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scatterstore/scatterstore/internal/backend"
	"github.com/scatterstore/scatterstore/internal/config"
	"github.com/scatterstore/scatterstore/internal/dbbackend"
	"github.com/scatterstore/scatterstore/internal/frontend"
	"github.com/scatterstore/scatterstore/internal/fsbackend"
	"github.com/scatterstore/scatterstore/internal/httpapi"
	"github.com/scatterstore/scatterstore/internal/logging"
	"github.com/scatterstore/scatterstore/internal/metrics"
	"github.com/scatterstore/scatterstore/internal/s3backend"
)

func main() {
	configPath := flag.String("config", "scatterstore.yaml", "path to configuration file")
	port := flag.Int("port", 0, "override listening port (default: from config or 9000)")
	host := flag.String("host", "", "override listening host (default: from config or 0.0.0.0)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (default: from config or info)")
	logFormat := flag.String("log-format", "", "log format: text, json (default: from config or text)")
	shutdownTimeout := flag.Int("shutdown-timeout", 30, "graceful shutdown timeout in seconds")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	metrics.Register()

	sockets, aliases, err := buildBackends(cfg.Backends)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build backends: %v\n", err)
		os.Exit(1)
	}

	var fe any
	if cfg.Frontend.Stateful {
		stateful, err := frontend.NewStateful(sockets, aliases, dbbackend.IndexConfig{
			Path: cfg.Frontend.Path,
			Name: cfg.Frontend.Name,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to construct stateful frontend: %v\n", err)
			os.Exit(1)
		}
		fe = stateful
	} else {
		fe = frontend.NewStateless(sockets)
	}

	ctx := context.Background()
	if err := initFrontend(ctx, fe); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize frontend: %v\n", err)
		os.Exit(1)
	}

	srv, err := httpapi.New(fe)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create server: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("scatterstore listening", "addr", addr, "stateful", cfg.Frontend.Stateful, "backends", len(sockets))
		if err := srv.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(*shutdownTimeout)*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		slog.Info("server stopped")

	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}
}

// buildBackends instantiates one backend.Backend per configured entry,
// preserving config order since that order is the stateful frontend's
// alias-to-socket mapping.
func buildBackends(configs []config.BackendConfig) ([]backend.Backend, []string, error) {
	sockets := make([]backend.Backend, 0, len(configs))
	aliases := make([]string, 0, len(configs))

	for _, bc := range configs {
		var sock backend.Backend
		switch bc.Type {
		case "db":
			sock = dbbackend.New(dbbackend.Config{
				Path:    bc.DB.Path,
				Name:    bc.DB.Name,
				Timeout: bc.DB.Timeout,
			})
		case "fs":
			sock = fsbackend.New(fsbackend.Config{
				Root:      bc.FS.Root,
				MetaTable: bc.FS.MetaTable,
				Timeout:   bc.FS.Timeout,
			})
		case "s3":
			sock = s3backend.New(s3backend.Config{
				Host:      bc.S3.Host,
				Bucket:    bc.S3.Bucket,
				AccessKey: bc.S3.AccessKey,
				SecretKey: bc.S3.SecretKey,
				Timeout:   bc.S3.Timeout,
			})
		default:
			return nil, nil, fmt.Errorf("unknown backend type %q for alias %q", bc.Type, bc.Alias)
		}
		sockets = append(sockets, sock)
		aliases = append(aliases, bc.Alias)
	}
	return sockets, aliases, nil
}

// initFrontend calls Init on either concrete frontend type and waits for
// it to settle. A small switch rather than an interface type keeps the
// frontend package's Init return type (a concrete *promise.Promise[bool])
// intact for its own callers.
func initFrontend(ctx context.Context, fe any) error {
	switch v := fe.(type) {
	case *frontend.Stateful:
		_, err := v.Init(ctx).Wait(ctx)
		return err
	case *frontend.Stateless:
		_, err := v.Init(ctx).Wait(ctx)
		return err
	default:
		return fmt.Errorf("unsupported frontend type %T", fe)
	}
}
