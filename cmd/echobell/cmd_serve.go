package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/echobell/echobell/internal/api"
	"github.com/echobell/echobell/internal/rules"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/JSON API server",
		Long: `Starts the HTTP API. Rules and household settings are reloaded on SIGHUP,
and on rules.reload_schedule when one is configured. Events older than
events.retention_days are pruned on events.prune_schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, closeFn, err := openApp(ctx, logger)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closeFn()

			if cfg.API.AuthToken == "" {
				logger.Warn("HTTP API: auth is DISABLED; set ECHOBELL_API_AUTH_TOKEN or api.auth_token for production use")
			}

			if cfg.Rules.ReloadSchedule != "" {
				sched, schedErr := rules.NewScheduler(a.Rules, cfg.Rules.ReloadSchedule, logger)
				if schedErr != nil {
					return fmt.Errorf("serve: %w", schedErr)
				}
				sched.Start()
				defer func() {
					stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()
					sched.Stop(stopCtx)
				}()
			}

			if cfg.Events.RetentionDays > 0 && cfg.Events.PruneSchedule != "" {
				pruner := cron.New()
				if _, cronErr := pruner.AddFunc(cfg.Events.PruneSchedule, func() {
					pruneCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
					defer cancel()
					if _, pruneErr := a.Lifecycle.Run(pruneCtx, false); pruneErr != nil {
						logger.Warn("scheduled event prune failed", "error", pruneErr)
					}
				}); cronErr != nil {
					return fmt.Errorf("serve: events.prune_schedule: %w", cronErr)
				}
				pruner.Start()
				defer pruner.Stop()
			}

			srv := api.NewServer(a, logger, cfg.API.AuthToken)
			httpSrv := &http.Server{
				Addr:              cfg.API.ListenAddr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				logger.Info("HTTP API server starting", "addr", cfg.API.ListenAddr)
				if listenErr := httpSrv.ListenAndServe(); listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
					return fmt.Errorf("serve: HTTP server: %w", listenErr)
				}
				return nil
			})

			g.Go(func() error {
				hup := make(chan os.Signal, 1)
				signal.Notify(hup, syscall.SIGHUP)
				defer signal.Stop(hup)
				for {
					select {
					case <-gctx.Done():
						return nil
					case <-hup:
						report, reloadErr := a.Reload(gctx)
						if report == nil {
							logger.Error("SIGHUP reload failed", "error", reloadErr)
							continue
						}
						if reloadErr != nil {
							logger.Warn("SIGHUP reload kept previous household settings", "error", reloadErr)
						}
						logger.Info("SIGHUP reload complete", "version", report.Version, "invalid", len(report.Invalid))
					}
				}
			})

			g.Go(func() error {
				<-gctx.Done()
				logger.Info("shutting down")
				if shutdownErr := api.Shutdown(httpSrv, shutdownTimeout); shutdownErr != nil {
					return fmt.Errorf("serve: graceful shutdown: %w", shutdownErr)
				}
				return nil
			})

			return g.Wait()
		},
	}
	return cmd
}
