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

	"github.com/phrazzld/meetrec/internal/api"
	"github.com/phrazzld/meetrec/internal/platform/daily"
	"github.com/phrazzld/meetrec/internal/recording"
	"github.com/phrazzld/meetrec/internal/scheduler"
	"github.com/phrazzld/meetrec/internal/task"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout   = 10 * time.Second
	webhookMaxSkew    = 5 * time.Minute
	readHeaderTimeout = 10 * time.Second
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, task dispatcher and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log, err := ctx.logger(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApplication(sigCtx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := app.close(); cerr != nil {
					log.Warn("failed to close application", "error", cerr)
				}
			}()

			if migrate {
				m, err := app.migrator()
				if err != nil {
					return err
				}
				if err := m.Up(sigCtx); err != nil {
					return fmt.Errorf("failed to apply migrations: %w", err)
				}
			}
			return app.serve(sigCtx)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply pending migrations before starting")
	return cmd
}

// serve runs the HTTP server, the dispatcher, the scheduler and, when Redis
// is configured, the wake-up subscriber until ctx is cancelled or one of
// them fails.
func (app *application) serve(ctx context.Context) error {
	pipeline, remote, err := app.pipeline(ctx)
	if err != nil {
		return err
	}
	trigger, err := recording.NewTrigger(app.recordings, app.queue, app.logger)
	if err != nil {
		return err
	}
	sched, err := scheduler.New(app.config.Cleanup, app.queue, trigger, app.logger)
	if err != nil {
		return err
	}
	dispatcher := task.NewDispatcher(app.queue, pipeline.Handlers(), app.dispatcherConfig(), app.logger)

	deps := routerDeps{
		rooms:      remote,
		queue:      app.queue,
		recordings: app.recordings,
		trigger:    trigger,
		checks:     app.healthChecks(),
		logger:     app.logger,
	}
	if secret := app.config.Daily.WebhookSecret; secret != "" {
		deps.verifier = daily.NewWebhookVerifier(secret, webhookMaxSkew)
	} else {
		app.logger.Warn("daily webhook secret not configured; webhook signatures are not verified")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           setupRouter(deps),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })
	if app.notifier != nil {
		g.Go(func() error { return app.notifier.Run(gctx) })
	}

	err = g.Wait()
	app.logger.Info("shutdown completed")
	return err
}

// healthChecks returns the dependency checks behind GET /health.
func (app *application) healthChecks() map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{
		"database": app.db.PingContext,
	}
	if app.notifier != nil {
		checks["redis"] = app.notifier.Ping
	}
	return checks
}
