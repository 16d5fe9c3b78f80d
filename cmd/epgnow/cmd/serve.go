package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	internalhttp "github.com/jmylchreest/epgnow/internal/http"
	"github.com/jmylchreest/epgnow/internal/http/handlers"
	"github.com/jmylchreest/epgnow/internal/observability"
	"github.com/jmylchreest/epgnow/internal/urlutil"
	"github.com/jmylchreest/epgnow/internal/version"
	"github.com/jmylchreest/epgnow/internal/watcher"
	"github.com/jmylchreest/epgnow/pkg/format"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the epgnow server",
	Long: `Start the epgnow HTTP API.

On start the guide is loaded from epg.url and then rebuilt on the
epg.update_cron schedule. With watcher.enabled, uploaded user playlists in
watcher.dir trigger a rebuild.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "host to bind to (overrides server.host)")
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides server.port)")
	serveCmd.Flags().String("url", "", "guide source (overrides epg.url)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("url") {
		cfg.EPG.URL, _ = cmd.Flags().GetString("url")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting epgnow",
		slog.String("version", version.Short()),
		slog.String("source", urlutil.Redact(cfg.EPG.URL)),
		slog.String("update_schedule", format.CronDescription(cfg.EPG.UpdateCron)),
	)

	a := newApp(ctx, cfg, logger)
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown", slog.String("error", err.Error()))
		}
	}()

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	server := internalhttp.NewServer(cfg.Server, observability.WithComponent(logger, "http"), version.Version)
	health := handlers.NewHealthHandler(version.Version).
		WithBreakers(a.client).
		WithGuide(a.manager)
	if a.db != nil {
		health = health.WithDB(a.db)
	}
	server.Register(health, handlers.NewEPGHandler(a.manager))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})

	if cfg.EPG.URL != "" {
		g.Go(func() error {
			if err := a.manager.Initialize(gctx, cfg.EPG.URL); err != nil {
				return fmt.Errorf("initializing guide: %w", err)
			}
			if next, ok := a.manager.NextUpdate(); ok {
				logger.Info("next guide update scheduled", slog.Time("at", next))
			}
			return nil
		})
	} else {
		logger.Warn("epg.url is not set, guide stays empty until a source is configured")
	}

	if cfg.Watcher.Enabled {
		w := watcher.New(cfg.Watcher.Dir, func(ctx context.Context, path string) {
			logger.InfoContext(ctx, "user playlist changed, rebuilding guide", slog.String("path", path))
			a.manager.RefreshAsync()
		}).
			WithDebounce(cfg.Watcher.Debounce).
			WithLogger(observability.WithComponent(logger, "watcher"))
		g.Go(func() error {
			if err := w.Run(gctx); err != nil {
				logger.Error("playlist watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
