package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsgrove/stockwatch/internal/server"
	"github.com/opsgrove/stockwatch/pkg/monitor"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the stock monitor in the background",
	Long: `Run the monitoring scheduler and the HTTP API until interrupted.
The scheduler evaluates all active replenishment rules on a fixed interval;
an in-flight evaluation pass is allowed to finish on shutdown.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringP("listen", "l", "", "API listen address (default from config)")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	listen, _ := cmd.Flags().GetString("listen")
	if listen != "" {
		cfg.Server.Listen = listen
	}

	logger := newLogger(cfg)

	engine, store, err := initEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	scheduler := monitor.NewScheduler(engine,
		cfg.Monitor.TickInterval(),
		cfg.Monitor.StartupDelay(),
		logger,
	)

	schedCtx, stopScheduler := context.WithCancel(context.Background())
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		scheduler.Run(schedCtx)
	}()

	apiServer := server.NewServer(store, engine, logger)
	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      apiServer.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("stock monitor started", "listen", cfg.Server.Listen)
		fmt.Fprintf(os.Stderr, "stockwatch listening on %s\n", cfg.Server.Listen)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		stopScheduler()
		<-schedDone
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())

		// Stop issuing ticks and wait for an in-flight pass to drain.
		stopScheduler()
		<-schedDone

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("stock monitor stopped")
	return nil
}
