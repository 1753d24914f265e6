package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/itswl/balance-alert/internal/server"
	"github.com/itswl/balance-alert/pkg/monitor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitoring loop and HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	eng, err := initEngine(cfg, false, true)
	if err != nil {
		return err
	}
	defer eng.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := server.NewServer(ctx, eng.orchestrator, eng.registry, eng.logger)
	httpSrv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		eng.logger.Info("http server listening", "addr", cfg.Server.Listen)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go scheduleLoop(ctx, eng, cfg.Settings.CheckInterval)

	select {
	case <-ctx.Done():
		eng.logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	// A manual refresh accepted over HTTP runs detached from its
	// request; the lifetime context is already cancelled, so this only
	// waits for it to unwind.
	eng.orchestrator.Wait()
	return nil
}

// scheduleLoop runs an immediate startup cycle, then one scheduled
// cycle per interval until the context is cancelled.
func scheduleLoop(ctx context.Context, eng *engine, interval time.Duration) {
	runOnce(ctx, eng, monitor.TriggerStartup)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce(ctx, eng, monitor.TriggerScheduled)
		}
	}
}

func runOnce(ctx context.Context, eng *engine, trigger monitor.Trigger) {
	if _, err := eng.orchestrator.RunCycle(ctx, trigger); err != nil {
		// A manual refresh may already hold the cycle; skip this tick.
		eng.logger.Warn("cycle skipped", "trigger", string(trigger), "error", err)
	}
}
