// CLAUDE:SUMMARY Entry point for diario: cobra CLI with `serve` (scheduler + chi HTTP + MCP) and `check` (one invocation).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/hazyhaar/diario/kit"
	"github.com/hazyhaar/diario/kvstore"
	"github.com/hazyhaar/diario/monitor"
	"github.com/hazyhaar/diario/notify"
	"github.com/hazyhaar/diario/observability"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

const version = "1.0.0"

const (
	heartbeatWorker   = "diario"
	heartbeatInterval = time.Minute
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "diario",
		Short:        "Watch official gazettes for terms and alert subscribers",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newCheckCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP/MCP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve(ctx)
		},
	}
}

func newCheckCmd() *cobra.Command {
	var req monitor.Request
	var terms string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one invocation and print the result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			req.Terms = splitList(terms)
			res, err := a.svc.Run(kit.WithTransport(ctx, "cli"), req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.URL, "url", "", "explicit document URL (manual run)")
	f.StringSliceVar(&req.Sources, "source", nil, "source names to check")
	f.StringVar(&terms, "terms", "", "comma-separated terms replacing the configured ones")
	f.BoolVar(&req.DryRun, "dry", false, "suppress the global notification")
	f.BoolVar(&req.Snippets, "snippets", false, "include text excerpts around hits")
	f.BoolVar(&req.Persist, "persist", false, "record a manual run in the history")
	return cmd
}

// app holds the wired process.
type app struct {
	settings *settings
	logger   *slog.Logger
	store    monitor.Store
	svc      *monitor.Service
	closers  []func() error
}

func setup(ctx context.Context) (*app, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	logger := newLogger(s.LogLevel)
	slog.SetDefault(logger)

	a := &app{settings: s, logger: logger}
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store = store

	notifier := notify.NewDispatcher(
		notify.NewEmail(s.Email),
		notify.NewTelegram(s.Telegram),
		s.MailTo,
		logger,
	)
	a.svc, err = monitor.New(store, notifier, s.Monitor, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// openStore connects Redis when REDIS_URL is set, SQLite otherwise.
func (a *app) openStore(ctx context.Context) (monitor.Store, error) {
	if a.settings.RedisURL != "" {
		r, err := kvstore.ConnectRedis(ctx, a.settings.RedisURL, "diario")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, r.Close)
		a.logger.Info("diario: using redis store")
		return r, nil
	}
	store, db, err := kvstore.OpenSQLite(a.settings.DBPath, "diario")
	if err != nil {
		return nil, fmt.Errorf("sqlite store: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	a.logger.Info("diario: using sqlite store", "path", a.settings.DBPath)
	return store, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("diario: close", "error", err)
		}
	}
}

func (a *app) serve(ctx context.Context) error {
	var adminHash []byte
	if a.settings.AdminKey != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(a.settings.AdminKey), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash admin key: %w", err)
		}
		adminHash = h
	} else {
		a.logger.Warn("diario: ADMIN_KEY not set, admin routes disabled")
	}

	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "diario", Version: version}, nil)
	a.svc.RegisterMCP(mcpSrv)
	mcpHandler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return mcpSrv
	}, nil)

	srv := &http.Server{
		Addr:              a.settings.Listen,
		Handler:           newRouter(a.svc, a.store, adminHash, mcpHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go a.svc.StartScheduler(ctx)
	go observability.NewHeartbeatWriter(a.store, heartbeatWorker, heartbeatInterval, a.logger).Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("diario: listening", "addr", srv.Addr, "sources", a.svc.Sources())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	a.logger.Info("diario: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
