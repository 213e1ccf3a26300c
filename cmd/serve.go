package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/covisearch/aggregator/internal/api"
	"github.com/covisearch/aggregator/internal/resync"
	"github.com/covisearch/aggregator/internal/store"
)

var (
	servePort       int
	serveWithResync bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		var st store.Store
		if serveWithResync {
			env, err := initAggregator(ctx, "resync")
			if err != nil {
				return err
			}
			defer env.Close()
			st = env.Store

			sched := resync.NewScheduler(newResyncJob(env), cfg.Resync.Schedule)
			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer func() { <-sched.Stop().Done() }()
		} else {
			var err error
			if st, err = openStore(ctx); err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := newServer(st, port)

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newServer(st store.Store, port int) *http.Server {
	return &http.Server{
		Addr: fmt.Sprintf(":%d", port),
		Handler: api.NewRouter(st, api.Options{
			PageSize:       cfg.Server.PageSize,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveWithResync, "with-resync", false, "also run the resync scheduler in-process")
	rootCmd.AddCommand(serveCmd)
}
