package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"notarium/internal/config"
	"notarium/internal/domain/repositories"
	"notarium/internal/folders"
	"notarium/internal/handler"
	"notarium/internal/middleware"
	filestore "notarium/internal/repository/file"
	"notarium/internal/repository/postgres"
	"notarium/internal/repository/sqlite"
	"notarium/internal/service"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	var logOut io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, cfg.MaxLogFiles)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"tree_storage", cfg.TreeStorage,
		"data_dir", cfg.DataDir,
	)

	ctx := context.Background()

	// Folder tree persistence
	var treeStore repositories.TreeStore
	switch cfg.TreeStorage {
	case config.StoragePostgres:
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to create connection pool: %v", err)
		}
		defer pool.Close()
		treeStore = postgres.NewTreeStore(pool, postgres.NewTableNames(cfg.TablePrefix), logger)
		logger.Info("database connected", "table_prefix", cfg.TablePrefix)
	default:
		store, err := filestore.NewTreeStore(filepath.Join(cfg.DataDir, "folders.json"), logger)
		if err != nil {
			log.Fatalf("Failed to open folder store: %v", err)
		}
		treeStore = store
	}

	// Flashcard persistence
	cards, err := sqlite.Open(filepath.Join(cfg.DataDir, "flashcards.db"), logger)
	if err != nil {
		log.Fatalf("Failed to open flashcard database: %v", err)
	}
	defer cards.Close()

	// Folder state manager: construct, then load
	manager := folders.NewManager(treeStore, logger)
	if err := manager.Load(ctx); err != nil {
		log.Fatalf("Failed to load folder collection: %v", err)
	}

	reviewService := service.NewReviewService(cards, logger, service.WithDueLimit(cfg.DueCardLimit))

	folderHandler := handler.NewFolderHandler(manager, logger)
	reviewHandler := handler.NewReviewHandler(reviewService, logger)

	logger.Info("services initialized")

	// HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Folder routes
	mux.HandleFunc("GET /api/folders", folderHandler.GetState)
	mux.HandleFunc("POST /api/folders", folderHandler.CreateFolder)
	mux.HandleFunc("POST /api/folders/{id}/rename", folderHandler.RenameFolder)
	mux.HandleFunc("POST /api/folders/{id}/move", folderHandler.MoveFolder)
	mux.HandleFunc("POST /api/folders/{id}/rename-move", folderHandler.RenameAndMoveFolder)
	mux.HandleFunc("POST /api/folders/{id}/replace", folderHandler.ReplaceFolder)
	mux.HandleFunc("DELETE /api/folders/{id}", folderHandler.DeleteFolder)
	mux.HandleFunc("PUT /api/current-folder", folderHandler.SetCurrentFolder)

	// Operation queue routes
	mux.HandleFunc("POST /api/operation-queue/resume", folderHandler.ResumeQueue)
	mux.HandleFunc("DELETE /api/operation-queue", folderHandler.ClearQueue)

	// Review routes
	mux.HandleFunc("POST /api/cards", reviewHandler.CreateCard)
	mux.HandleFunc("POST /api/cards/{id}/review", reviewHandler.ReviewCard)
	mux.HandleFunc("GET /api/cards/{id}/history", reviewHandler.ReviewHistory)
	mux.HandleFunc("GET /api/decks/{id}/due", reviewHandler.DueCards)

	// Build middleware chain (applied in reverse order, they wrap each other)
	var h http.Handler = mux
	h = middleware.Recovery(logger)(h)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}
}
