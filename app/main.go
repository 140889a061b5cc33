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

	"github.com/lysyi3m/insightpress/app/api"
	"github.com/lysyi3m/insightpress/app/cfg"
	"github.com/lysyi3m/insightpress/app/database"
	"github.com/lysyi3m/insightpress/app/digest"
	"github.com/lysyi3m/insightpress/app/draft"
	"github.com/lysyi3m/insightpress/app/feed"
	"github.com/lysyi3m/insightpress/app/hn"
	"github.com/lysyi3m/insightpress/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogger(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("insightpress failed", "error", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting insightpress", "version", appCfg.Version, "serve", appCfg.Serve)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "version", version, "dirty", dirty)

	configCache := feed.NewConfigCache(appCfg.FeedsDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load feed configurations: %w", err)
	}
	slog.Info("Feed configurations loaded", "count", configCache.GetConfigCount())

	hashtags, err := draft.LoadHashtags(appCfg.HashtagsFile)
	if err != nil {
		return err
	}

	hnClient := hn.NewClient(hn.WithTimeout(appCfg.Timeout()), hn.WithUserAgent(appCfg.UserAgent))
	hnCollector := hn.NewCollector(hnClient, appCfg.HNStoryType, appCfg.HNMaxStories, appCfg.WeightHN)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	writer, err := draft.NewWriter(ctx, draft.WriterConfig{
		Provider:    appCfg.LLMProvider,
		APIKey:      appCfg.LLMAPIKey,
		Model:       appCfg.LLMModel,
		Temperature: appCfg.LLMTemperature,
		Timeout:     appCfg.LLMRequestTimeout(),
		MaxRetries:  appCfg.LLMMaxRetries,
	})
	if err != nil {
		return err
	}

	var opts []digest.Option
	if writer != nil {
		opts = append(opts, digest.WithWriter(writer))
	}

	collector := digest.NewSourceCollector(appCfg, configCache, hnCollector, tasks.NewPool(appCfg.WorkerCount))
	service := digest.NewService(appCfg, collector,
		database.NewItemRepository(db), database.NewUsedRepository(db), hashtags, opts...)

	if !appCfg.Serve {
		result, err := service.Run(ctx, appCfg.Refresh)
		if err != nil {
			return err
		}
		fmt.Println(result.Path)
		return nil
	}

	return serve(ctx, appCfg, service)
}

func serve(ctx context.Context, appCfg *cfg.Cfg, service *digest.Service) error {
	scheduler, err := digest.NewScheduler(appCfg.Schedule, time.Local, service)
	if err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	handler := api.NewHandler(ctx, service)
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	slog.Info("insightpress stopped")
	return nil
}
