package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/khanhnv2901/sparrow-cli/internal/api"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run sparrow as a REST API service",
	Long: `Serve the recon job queue, the live connection stream, request interception
and DNS cache management over HTTP.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		addr, _ := cmd.Flags().GetString("addr")
		authToken, _ := cmd.Flags().GetString("auth-token")
		shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")
		corsOrigins, _ := cmd.Flags().GetStringSlice("cors-origins")
		rateLimit, _ := cmd.Flags().GetInt("rate-limit")
		rateBurst, _ := cmd.Flags().GetInt("rate-burst")
		runMonitor, _ := cmd.Flags().GetBool("monitor")
		jobTimeout, _ := cmd.Flags().GetDuration("job-timeout")
		queueSize, _ := cmd.Flags().GetInt("job-queue")

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		container, err := appCtx.Container(ctx)
		if err != nil {
			return err
		}
		logger := container.Logger

		jobManager := api.NewJobManager(container.Recon, api.JobManagerOptions{
			QueueSize:  queueSize,
			JobTimeout: jobTimeout,
			Logger:     logger.Named("jobs"),
			Metrics:    container.Metrics,
		})
		defer jobManager.Close()

		hub := api.NewConnectionHub()
		if runMonitor {
			container.Monitor.Start(hub)
			defer container.Monitor.Stop()
		}

		server := api.NewServer(api.Config{
			Health:      &healthAPIService{rulesDir: appCtx.Config.RulesDir},
			Jobs:        jobManager,
			Connections: hub,
			Interceptor: container.Interceptor,
			DNSCache:    container.DNSCache,
			Gatherer:    appCtx.Registry,
			AuthToken:   authToken,
			Logger:      logger.Named("api"),
			CORSOrigins: corsOrigins,
			RateLimit:   rateLimit,
			RateBurst:   rateBurst,
		})
		defer server.Close()

		httpServer := &http.Server{
			Addr:              addr,
			Handler:           server,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			// Streams stay open, so no write timeout.
			IdleTimeout: 120 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s API server listening on %s (rules dir: %s)\n", colorInfo("→"), addr, appCtx.Config.RulesDir)
			fmt.Fprintf(out, "%s Press Ctrl+C to gracefully shutdown\n", colorInfo("→"))
			serverErrors <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
		case <-ctx.Done():
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s Shutting down...\n", colorInfo("→"))

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("graceful shutdown failed", zap.Error(err))
				if closeErr := httpServer.Close(); closeErr != nil {
					return fmt.Errorf("failed to gracefully shutdown server: %w (close error: %v)", err, closeErr)
				}
				return fmt.Errorf("failed to gracefully shutdown server: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Server shutdown complete\n", colorSuccess("✓"))
		}
		return nil
	},
}

type healthAPIService struct {
	rulesDir string
}

// Check fails when the rules directory has gone away, since rule and block
// list updates could no longer be persisted.
func (s *healthAPIService) Check(ctx context.Context) error {
	if s.rulesDir == "" {
		return fmt.Errorf("rules directory not configured")
	}
	info, err := os.Stat(s.rulesDir)
	if err != nil {
		return fmt.Errorf("rules directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("rules path %s is not a directory", s.rulesDir)
	}
	return nil
}

func init() {
	flags := serveCmd.Flags()
	flags.String("addr", "127.0.0.1:8080", "Address for the API server")
	flags.String("auth-token", "", "Optional shared secret for API requests")
	flags.Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	flags.StringSlice("cors-origins", []string{}, "Allowed CORS origins (empty = allow all)")
	flags.Int("rate-limit", 10, "Rate limit per IP (requests/second, 0 = disabled)")
	flags.Int("rate-burst", 20, "Rate limit burst size")
	flags.Bool("monitor", true, "Run the connection monitor and stream its events")
	flags.Duration("job-timeout", 5*time.Minute, "Deadline for a single recon job")
	flags.Int("job-queue", 100, "Pending recon jobs accepted before new ones are refused")
	addMonitorFlags(flags)
	rootCmd.AddCommand(serveCmd)
}
