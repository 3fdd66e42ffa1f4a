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

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailvault/exporter/internal/attachment"
	"mailvault/exporter/internal/config"
	"mailvault/exporter/internal/health"
	"mailvault/exporter/internal/logger"
	"mailvault/exporter/internal/monitoring"
	"mailvault/exporter/internal/service"
	"mailvault/exporter/internal/storage/filesystem"
)

const version = "0.3.0"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "exporter",
		Short:         "Export an archived mail store to .eml files",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runExport,
	}
	config.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(newMigrateCmd())
	return rootCmd
}

// setup 加载配置并创建日志
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
		Compress:    true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting exporter",
		zap.String("version", version),
		zap.String("archive", cfg.Database.Type),
		zap.String("output", cfg.Export.OutputDir),
		zap.Int("workers", cfg.Export.Workers),
	)

	// 信号处理
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	archive, db, err := openArchive(cfg, log)
	if err != nil {
		return err
	}
	defer archive.Close()

	output, err := filesystem.NewStore(cfg.Export.OutputDir, cfg.Export.AttachmentsDir)
	if err != nil {
		return fmt.Errorf("failed to prepare output directory: %w", err)
	}

	var sink attachment.Sink
	if cfg.Export.DebugDir != "" {
		traceSink, err := filesystem.NewTraceSink(cfg.Export.DebugDir)
		if err != nil {
			return err
		}
		sink = traceSink
		log.Info("attachment decode traces enabled", zap.String("dir", cfg.Export.DebugDir))
	}

	metrics := monitoring.NewMetrics()
	svc := service.NewExportService(archive, output, service.Options{
		Workers: cfg.Export.Workers,
		Sink:    sink,
		Metrics: metrics,
		Logger:  log.Named("export"),
	})
	healthChecker := health.NewHealthChecker(archive, db, log.Named("health"))

	group, groupCtx := errgroup.WithContext(ctx)

	var server *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.HTTPHandler())
		mux.Handle("/live", healthChecker.Handler())
		mux.Handle("/ready", healthChecker.Handler())
		server = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		// 监控服务 goroutine
		group.Go(func() error {
			log.Info("starting metrics server", zap.String("address", cfg.Metrics.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", zap.Error(err))
				return err
			}
			return nil
		})
	}

	// 导出 goroutine，结束后关闭监控服务
	var summary service.Summary
	group.Go(func() error {
		healthChecker.SetReady(true)
		defer healthChecker.SetReady(false)

		var runErr error
		summary, runErr = svc.Run(groupCtx)

		if server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error("metrics server shutdown error", zap.Error(err))
			}
		}
		return runErr
	})

	runErr := group.Wait()

	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Error("failed to write metrics textfile", zap.Error(err))
		}
	}

	if stats, err := output.Stats(); err == nil {
		log.Info("output directory",
			zap.String("path", output.BasePath()),
			zap.Int("eml_files", stats.Messages),
			zap.Int("attachment_files", stats.Attachments),
			zap.Int64("total_bytes", stats.TotalBytes),
		)
	}

	printSummary(cmd, summary)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Warn("export interrupted")
		}
		return runErr
	}
	return nil
}

func printSummary(cmd *cobra.Command, s service.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "messages:     %d (exported %d, empty %d, errors %d)\n", s.Messages, s.Exported, s.Empty, s.Errors)
	fmt.Fprintf(out, "attachments:  %d (errors %d, skipped %d, size mismatches %d)\n",
		s.Attachments, s.AttachmentErrors, s.AttachmentSkipped, s.SizeMismatches)
	if s.WriteErrors > 0 {
		fmt.Fprintf(out, "write errors: %d\n", s.WriteErrors)
	}
	fmt.Fprintf(out, "duration:     %s\n", s.Duration.Round(time.Millisecond))
}
