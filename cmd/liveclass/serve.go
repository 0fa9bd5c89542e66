package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"liveclass/internal/app"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context(), opts)
		},
	}

	cmd.Flags().String("host", "", "listen host (overrides http.host)")
	cmd.Flags().Int("port", 0, "listen port (overrides http.port)")
	cmd.Flags().String("db", "", "SQLite database path (overrides database.path)")
	_ = opts.v.BindPFlag("http.host", cmd.Flags().Lookup("host"))
	_ = opts.v.BindPFlag("http.port", cmd.Flags().Lookup("port"))
	_ = opts.v.BindPFlag("database.path", cmd.Flags().Lookup("db"))
	return cmd
}

// runServer starts the application and blocks until SIGINT/SIGTERM or ctx ends
func runServer(ctx context.Context, opts *rootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// STEP 1: Load configuration with precedence (flags > env > file > defaults)
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	// STEP 2: Create application with configuration
	application, err := app.NewApplication(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// STEP 3: Setup signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	// STEP 4: Start serving
	if err := application.Start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
		return fmt.Errorf("application error: %w", err)
	}

	// STEP 5: Wait for shutdown signal
	select {
	case sig := <-signalCh:
		log.Printf("Received signal %v, shutting down gracefully", sig)
	case <-ctx.Done():
		log.Printf("Context done, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}
