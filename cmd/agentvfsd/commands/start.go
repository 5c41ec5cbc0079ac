package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/agentvfs/core/hooks/adminapi"
	"github.com/agentvfs/core/internal/logger"
	"github.com/agentvfs/core/internal/telemetry"
	"github.com/agentvfs/core/pkg/cache/coordinator"
	"github.com/agentvfs/core/pkg/config"
	"github.com/agentvfs/core/pkg/metrics"
	promcollector "github.com/agentvfs/core/pkg/metrics/prometheus"
	"github.com/agentvfs/core/pkg/server"
)

var (
	foreground bool
	listenAddr string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the agentvfsd server",
	Long: `Start the agentvfsd server: loads configuration, builds the
MetadataStore/BlobStore/cache/ReBAC component graph for every configured
zone, and serves the admin HTTP API.

Examples:
  agentvfsd start
  agentvfsd start --config /etc/agentvfs/config.yaml
  AGENTVFS_LOGGING_LEVEL=DEBUG agentvfsd start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", true, "run in the foreground (background daemon mode is not implemented in this build)")
	startCmd.Flags().StringVar(&listenAddr, "listen", ":8080", "admin API listen address")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "agentvfsd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "agentvfsd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()),
		"metadata_store", cfg.MetadataStore.Type, "blob_store", cfg.BlobStore.Type)

	srv, err := server.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}
	logger.Info("zones initialized", "count", len(srv.Zones))

	if cfg.Metrics.Enabled {
		reg := metrics.Init()
		coords := make(map[string]*coordinator.Coordinator, len(srv.Zones))
		for id, z := range srv.Zones {
			coords[id] = z.Coord
		}
		reg.MustRegister(promcollector.NewCacheCollector(coords))

		metricsAddr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer := &http.Server{Addr: metricsAddr, Handler: metricsMux}
		go func() {
			logger.Info("metrics listening", "addr", metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer metricsServer.Close()
	}

	mux := adminapi.NewRouter(srv)
	httpServer := &http.Server{Addr: listenAddr, Handler: mux}

	serverDone := make(chan error, 1)
	go func() {
		logger.Info("admin API listening", "addr", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
			return
		}
		serverDone <- nil
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, draining admin API")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("admin API shutdown error", "error", err)
			return err
		}
		logger.Info("server stopped gracefully")
	case err := <-serverDone:
		if err != nil {
			logger.Error("admin API error", "error", err)
			return err
		}
	}

	return nil
}

func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// InitLogger initializes the structured logger from config.
func InitLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}
