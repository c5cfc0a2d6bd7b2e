package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/quillfeed/quillfeed/app/api"
	"github.com/quillfeed/quillfeed/app/cfg"
	"github.com/quillfeed/quillfeed/app/database"
	"github.com/quillfeed/quillfeed/app/feed"
	"github.com/quillfeed/quillfeed/app/ingest"
	"github.com/quillfeed/quillfeed/app/notify"
	"github.com/quillfeed/quillfeed/app/settings"
	"github.com/quillfeed/quillfeed/app/state"
	appsync "github.com/quillfeed/quillfeed/app/sync"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was requested
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Info("Starting Quillfeed", "version", appCfg.Version, "environment", appCfg.Environment)

	dataDir := filepath.Join(appCfg.DataDir, appCfg.StoreDirName())

	db, err := database.Open(dataDir)
	if err != nil {
		slog.Error("Failed to open collection stores", "dir", dataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("Collection stores opened", "dir", dataDir)

	feedRepo := database.NewFeedRepository(db)
	articleRepo := database.NewArticleRepository(db)
	categoryRepo := database.NewCategoryRepository(db)

	settingsStore, err := settings.Open(dataDir)
	if err != nil {
		slog.Error("Failed to open settings store", "error", err)
		os.Exit(1)
	}

	store := state.NewStore(feedRepo, articleRepo, categoryRepo)
	if err := store.Load(); err != nil {
		slog.Error("Failed to load state", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{}
	fetchTimeout := time.Duration(appCfg.FetchTimeout) * time.Second
	parser := feed.NewParser(httpClient, appCfg.UserAgent, fetchTimeout)
	extractor := feed.NewContentExtractor(httpClient, appCfg.UserAgent, fetchTimeout)
	notifier := notify.NewLogNotifier()

	queue := ingest.NewQueue(parser, articleRepo, store, notifier)
	queue.Start()
	defer queue.Stop()
	slog.Info("Ingestion queue started", "workers", appCfg.WorkerCount)

	syncer := appsync.NewSyncer(httpClient, settingsStore, queue)

	refreshCtx, cancelRefresh := context.WithCancel(context.Background())
	defer cancelRefresh()
	if appCfg.RefreshInterval > 0 {
		go runRefreshLoop(refreshCtx, queue, feedRepo,
			time.Duration(appCfg.RefreshInterval)*time.Second)
	}

	handler := api.NewHandler(store, feedRepo, articleRepo, queue, syncer, extractor)
	server := api.NewServer(handler)

	httpServer := &http.Server{
		Addr:         "127.0.0.1:" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}

// runRefreshLoop periodically re-ingests every subscribed feed. Each pass
// waits for its batch to drain before the next tick is considered.
func runRefreshLoop(ctx context.Context, queue *ingest.Queue,
	feedRepo database.FeedRepository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		feeds, err := feedRepo.GetFeeds()
		if err != nil {
			slog.Error("Failed to load feeds for refresh", "error", err)
			continue
		}
		if len(feeds) == 0 {
			continue
		}

		sources := make([]feed.Source, 0, len(feeds))
		for _, f := range feeds {
			sources = append(sources, feed.RefreshSource{
				FeedID:   f.ID,
				XMLURL:   f.XMLURL,
				Title:    f.Title,
				Category: f.Category,
				Favicon:  f.Favicon,
			})
		}

		results := queue.Ingest(ctx, ingest.Batch{Sources: sources, Mode: ingest.ModeRefresh})
		added := 0
		for result := range results {
			if result.Err != nil {
				slog.Warn("Feed refresh failed", "url", result.URL, "error", result.Err)
				continue
			}
			added += result.NewArticles
		}

		slog.Debug("Refresh pass complete", "feeds", len(feeds), "new_articles", added)
	}
}
