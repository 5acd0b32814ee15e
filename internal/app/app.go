package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/config"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/relay"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/session"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/telemetry"
	"github.com/woowenjun99/CG4002-Evaluation-Server/logging"
	loggingSinks "github.com/woowenjun99/CG4002-Evaluation-Server/logging/sinks"
)

const shutdownTimeout = 10 * time.Second

// Run serves the relay until ctx is cancelled or the server fails.
func Run(ctx context.Context, cfg config.Config) error {
	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	return Serve(ctx, listener, cfg)
}

// Serve is Run on an existing listener.
func Serve(ctx context.Context, listener net.Listener, cfg config.Config) error {
	logger := telemetry.Or(cfg.Logger)

	sinks, closeFiles, err := buildSinks(ctx, cfg.Logging)
	if err != nil {
		listener.Close()
		return err
	}
	router := logging.NewRouter(nil, cfg.Logging, sinks)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := multierr.Append(router.Close(closeCtx), closeFiles()); cerr != nil {
			logger.Printf("failed to close logging: %v", cerr)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	registry := session.NewRegistry()
	handler := relay.NewHandler(relay.Config{
		Registry:    registry,
		SessionHost: cfg.SessionHost,
		ReadTimeout: cfg.ReadTimeout,
		Seed:        cfg.ScenarioSeed,
		Logger:      logger,
		Publisher:   router,
		BaseContext: gctx,
	})
	srv := &http.Server{
		Handler: relay.NewHTTPHandler(handler, relay.HTTPConfig{
			Observability: cfg.Observability,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Printf("evaluation server listening on %s", listener.Addr())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		return multierr.Append(err, registry.StopAll())
	})
	return g.Wait()
}

// buildSinks opens every enabled sink. The returned func closes the files
// the sinks write to and must run after the router is closed.
func buildSinks(ctx context.Context, cfg logging.Config) ([]logging.NamedSink, func() error, error) {
	var (
		named   []logging.NamedSink
		closers []io.Closer
	)
	closeAll := func() error {
		var err error
		for _, c := range closers {
			err = multierr.Append(err, c.Close())
		}
		return err
	}
	fail := func(err error) ([]logging.NamedSink, func() error, error) {
		for _, n := range named {
			err = multierr.Append(err, n.Sink.Close(ctx))
		}
		return nil, nil, multierr.Append(err, closeAll())
	}

	for _, name := range cfg.EnabledSinks {
		switch name {
		case logging.SinkConsole:
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewConsoleSink(os.Stdout, cfg.Console)})
		case logging.SinkJSON:
			var w io.Writer = os.Stdout
			if cfg.JSON.FilePath != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.JSON.FilePath), 0o755); err != nil {
					return fail(fmt.Errorf("create json log dir: %w", err))
				}
				f, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					return fail(fmt.Errorf("open json log: %w", err))
				}
				closers = append(closers, f)
				w = f
			}
			named = append(named, logging.NamedSink{Name: name, Sink: loggingSinks.NewJSON(w, cfg.JSON.FlushInterval)})
		case logging.SinkEvaluation:
			sink, err := loggingSinks.NewEvaluationFiles(cfg.Evaluation)
			if err != nil {
				return fail(err)
			}
			named = append(named, logging.NamedSink{Name: name, Sink: sink})
		case logging.SinkSQLite:
			sink, err := loggingSinks.NewSQLite(ctx, cfg.SQLite)
			if err != nil {
				return fail(err)
			}
			named = append(named, logging.NamedSink{Name: name, Sink: sink})
		default:
			return fail(fmt.Errorf("unknown log sink %q", name))
		}
	}
	return named, closeAll, nil
}
