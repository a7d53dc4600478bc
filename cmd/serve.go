package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// backfillFailsafeAge is how long a fill pause may last before the janitor
// lifts it.
const backfillFailsafeAge = 5 * time.Minute

// shutdownTimeout bounds draining in-flight requests on SIGINT/SIGTERM.
const shutdownTimeout = 10 * time.Second

// shutdownOnSignal drains the server once ctx is cancelled. The drain runs
// under its own deadline; the cancelled signal context would abort it
// immediately.
func shutdownOnSignal(ctx context.Context, srv *http.Server) {
	<-ctx.Done()
	zap.L().Info("shutting down server")
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the discovery API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		api := newAPIServer(env.Store, env.Scheduler, env.Ledger)

		// Janitor: lift stuck fill pauses and purge expired expansion
		// cache rows.
		janitor := cron.New()
		_, err = janitor.AddFunc("@every 1m", func() {
			if env.Pipeline.ResumeStaleBackfills(backfillFailsafeAge) {
				zap.L().Warn("janitor resumed stale backfill pause")
			}
			if n, err := env.Store.DeleteExpiredExpansions(ctx); err != nil {
				zap.L().Warn("janitor expansion purge failed", zap.Error(err))
			} else if n > 0 {
				zap.L().Debug("janitor purged expired expansions", zap.Int("rows", n))
			}
		})
		if err != nil {
			return eris.Wrap(err, "schedule janitor")
		}
		janitor.Start()
		defer janitor.Stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      api.routes(),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go shutdownOnSignal(ctx, srv)

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
