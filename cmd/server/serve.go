package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"weatherfav/internal/api"
	"weatherfav/internal/config"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	var noRefresh bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic refresh loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *cfg, !noRefresh)
		},
	}
	cmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "disable the periodic refresh loop")
	return cmd
}

func runServe(parent context.Context, cfg config.Config, refreshLoop bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	go logChanges(ctx, a)
	if refreshLoop {
		go a.fetcher.RunRefreshLoop(ctx, cfg.RefreshInterval)
	}

	mux := http.NewServeMux()
	handler := api.NewHandler(a.favorites, a.refresher, a.fetcher, a.forecast, a.registry)
	handler.RegisterRoutes(mux)

	var root http.Handler = mux
	if len(cfg.ClientSecrets) > 0 {
		root = api.NewRequestSignatureMiddleware(cfg.ClientSecrets, 5*time.Minute)(mux)
	} else if cfg.IsProduction() {
		a.log.Warn("CLIENT_SECRETS is empty; /v1 routes are unauthenticated")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.OWMTimeout + 10*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infow("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-errCh:
		a.log.Errorw("server error", "error", err)
		return err
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warnw("shutdown incomplete", "error", err)
	}
	a.log.Info("server stopped")
	return nil
}

// logChanges is the process's subscriber to the favorites change stream.
func logChanges(ctx context.Context, a *app) {
	log := a.log.Named("changes")
	changes := a.favorites.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			log.Infow("favorite changed", "kind", c.Kind.String(), "id", c.Record.ID, "name", c.Record.Name)
		}
	}
}
