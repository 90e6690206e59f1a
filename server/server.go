package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"WaveDeck/cache"
	"WaveDeck/config"
	"WaveDeck/core/audio"
	"WaveDeck/core/catalog"
	"WaveDeck/db"
	"WaveDeck/logger"
	"WaveDeck/repository"
	"WaveDeck/storage"

	"github.com/gorilla/mux"
)

// NewRouter wires the HTTP surface. webAppDir is served at / when it exists.
func NewRouter(h *APIHandler, webAppDir string) *mux.Router {
	router := mux.NewRouter()

	router.Use(recoverMiddleware)
	router.Use(accessLogMiddleware)
	router.Use(corsMiddleware)

	h.RegisterRoutes(router)

	if webAppDir != "" {
		if info, err := os.Stat(webAppDir); err == nil && info.IsDir() {
			router.PathPrefix("/").Handler(NewStaticHandler(webAppDir))
			logger.Info("serving web UI", logger.String("dir", webAppDir))
		}
	}

	// OPTIONS preflights for routes that only declare other methods.
	router.MethodNotAllowedHandler = corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}))
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	return router
}

// backends holds what Start opened so it can be closed on shutdown.
type backends struct {
	repo    repository.TrackRepository
	store   storage.Store
	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(cfg *config.Config) (*backends, error) {
	b := &backends{}

	switch cfg.CatalogBackend {
	case config.CatalogMySQL:
		gdb, err := db.ConnectGorm(cfg)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = db.CloseGorm(gdb) })
		if err := repository.MigrateTracks(gdb); err != nil {
			b.close()
			return nil, err
		}
		b.repo = repository.NewGormTrackRepository(gdb)
	default:
		b.repo = repository.NewMemoryTrackRepository()
	}

	if cfg.CatalogCache == config.CacheRedis {
		rdb, err := db.ConnectRedis(cfg)
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		b.repo = cache.NewCachedTrackRepository(b.repo, rdb)
	}

	switch cfg.StorageBackend {
	case config.StorageMinio:
		store, err := storage.NewMinioStore(cfg)
		if err != nil {
			b.close()
			return nil, err
		}
		b.store = store
	default:
		store, err := storage.NewLocalStore(cfg.UploadDir)
		if err != nil {
			b.close()
			return nil, err
		}
		b.store = store
	}
	return b, nil
}

// Start builds the configured backends and serves HTTP until SIGINT/SIGTERM.
func Start(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	b, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	prober, err := audio.NewProber(cfg)
	if err != nil {
		return err
	}

	hub := catalog.NewHub(b.repo.GetAllTracks)
	go hub.Run()
	defer hub.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if local, ok := b.store.(*storage.LocalStore); ok {
		go func() {
			if err := local.WatchRemovals(ctx, NewJanitor(b.repo, hub).FileRemoved); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("upload directory watcher stopped", logger.ErrorField(err))
			}
		}()
	}

	apiHandler := NewAPIHandler(b.repo, b.store, prober, hub, cfg)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(apiHandler, cfg.WebAppDir),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			logger.String("addr", server.Addr),
			logger.String("storage", cfg.StorageBackend),
			logger.String("catalog", cfg.CatalogBackend),
			logger.String("cache", cfg.CatalogCache),
			logger.String("durationProbe", cfg.DurationProbe))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
