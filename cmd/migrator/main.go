package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/post-migrate/app/api"
	"github.com/lysyi3m/post-migrate/app/cfg"
	"github.com/lysyi3m/post-migrate/app/content"
	"github.com/lysyi3m/post-migrate/app/database"
	"github.com/lysyi3m/post-migrate/app/media"
	"github.com/lysyi3m/post-migrate/app/migration"
	"github.com/lysyi3m/post-migrate/app/source"
)

func main() {
	loaded, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if loaded == nil {
		// help was shown
		return
	}

	setupLogging(cfg.Get().Debug)

	if err := run(); err != nil {
		slog.Error("Migration failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func run() error {
	appCfg := cfg.Get()
	slog.Info("Starting Post Migrate", "version", appCfg.Version, "source_type", appCfg.SourceType)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	postRepo := database.NewPostRepository(db)
	runRepo := database.NewRunRepository(db)

	runner, err := buildRunner(postRepo, runRepo)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := migration.Options{
		PageSize:       appCfg.PageSize,
		MaxConcurrency: appCfg.MaxConcurrency,
		StartPage:      appCfg.StartPage,
	}

	if appCfg.Serve {
		return serve(ctx, postRepo, runner, opts)
	}

	summary, runErr := runner.Run(ctx, opts)

	slog.Info("Migration run finished",
		"run_id", summary.RunID,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"images_migrated", summary.ImagesMigrated,
		"images_failed", summary.ImagesFailed,
		"next_page", summary.NextPage,
		"cancelled", summary.Cancelled)

	for _, failure := range summary.Failures {
		slog.Warn("Post not migrated", "post_id", failure.PostID, "reason", failure.Reason)
	}

	if appCfg.ReportFile != "" {
		if err := migration.WriteReport(appCfg.ReportFile, summary); err != nil {
			slog.Error("Failed to write report", "path", appCfg.ReportFile, "error", err)
		}
	}

	return runErr
}

func buildRunner(postRepo database.PostRepository, runRepo database.RunRepository) (*migration.Runner, error) {
	appCfg := cfg.Get()
	httpClient := &http.Client{Timeout: appCfg.RequestTimeout}

	var src source.Source
	switch appCfg.SourceType {
	case "feed":
		src = source.NewFeedClient(httpClient, appCfg.SourceURL, appCfg.UserAgent, appCfg.RequestTimeout)
	default:
		src = source.NewRESTClient(httpClient, appCfg.SourceURL, appCfg.UserAgent,
			appCfg.RequestTimeout, appCfg.SourceRetries, appCfg.RetryDelay)
	}

	uploader, err := media.NewS3Uploader(media.S3Config{
		Bucket:        appCfg.S3Bucket,
		Region:        appCfg.S3Region,
		Endpoint:      appCfg.S3Endpoint,
		KeyPrefix:     appCfg.S3KeyPrefix,
		PublicBaseURL: appCfg.PublicBaseURL,
		Timeout:       appCfg.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create uploader: %w", err)
	}

	fetcher := media.NewFetcher(httpClient, appCfg.UserAgent, appCfg.RequestTimeout, appCfg.FetchRetries, appCfg.RetryDelay)
	classifier := media.NewClassifier(appCfg.LegacyHost, appCfg.DestinationHost(), appCfg.UploadPathPrefix)
	normalizer := content.NewNormalizer(appCfg.LegacyHost, appCfg.UploadPathPrefix, appCfg.PublicBaseURL)

	worker := migration.NewWorker(classifier, fetcher, uploader, normalizer, postRepo,
		appCfg.ExcerptLength, appCfg.RequestTimeout)
	if appCfg.RecoverEmptyBodies {
		worker = worker.WithBodyRecovery(content.NewExtractor())
	}

	driver := migration.NewDriver(src, worker)

	return migration.NewRunner(driver, runRepo, appCfg.RequestTimeout), nil
}

func serve(ctx context.Context, postRepo database.PostRepository, runner *migration.Runner, opts migration.Options) error {
	appCfg := cfg.Get()
	handler := api.NewHandler(ctx, postRepo, runner, opts)
	server := api.NewServer(handler, appCfg.APIAccessKey, appCfg.Version)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case serverErr = <-serverErrChan:
		slog.Error("Server error", "error", serverErr)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// an in-flight run observes ctx and stops dispatching
	for {
		if _, running := runner.Running(); !running {
			break
		}
		select {
		case <-shutdownCtx.Done():
			slog.Warn("Migration run still in progress at shutdown")
			return serverErr
		case <-time.After(100 * time.Millisecond):
		}
	}

	slog.Info("Post Migrate shutdown complete")
	return serverErr
}
