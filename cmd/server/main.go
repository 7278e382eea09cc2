package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yeenote-sync-server/internal/config"
	"yeenote-sync-server/internal/handler"
	"yeenote-sync-server/internal/middleware"
	"yeenote-sync-server/internal/repository"
	"yeenote-sync-server/internal/service"
	"yeenote-sync-server/internal/storage"
	"yeenote-sync-server/internal/websocket"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logFile := setupLogging(cfg.Logging)
	if logFile != nil {
		defer logFile.Close()
	}

	ctx := context.Background()

	client, err := kivik.New("couch", cfg.Database.URL())
	if err != nil {
		log.Fatalf("Failed to connect to CouchDB: %v", err)
	}

	exists, err := client.DBExists(ctx, cfg.Database.Name)
	if err != nil {
		log.Fatalf("Failed to check database existence: %v", err)
	}

	if !exists {
		if err := client.CreateDB(ctx, cfg.Database.Name); err != nil {
			log.Fatalf("Failed to create database: %v", err)
		}
		log.Printf("Created database: %s", cfg.Database.Name)
	}

	if err := repository.EnsureIndexes(ctx, client, cfg.Database.Name); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	retries := cfg.Sync.MaxWriteRetries
	userRepo := repository.NewUserRepository(client, cfg.Database.Name, retries)
	noteRepo := repository.NewNoteRepository(client, cfg.Database.Name, retries)
	categoryRepo := repository.NewCategoryRepository(client, cfg.Database.Name, retries)
	recordRepo := repository.NewSyncRecordRepository(client, cfg.Database.Name, retries)

	files, err := newFileStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to set up file storage: %v", err)
	}
	images := service.NewImageStore(files, cfg.Upload.MaxFileSize)

	wsManager := websocket.NewManager(websocket.Options{
		MaxConnPerUser: cfg.WebSocket.MaxConnPerUser,
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		PingPeriod:     cfg.WebSocket.PingPeriod,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	})
	go wsManager.Run()

	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration)
	userService := service.NewUserService(userRepo, images)
	noteService := service.NewNoteService(noteRepo, categoryRepo, images, wsManager)
	categoryService := service.NewCategoryService(categoryRepo, noteRepo, wsManager)
	queryService := service.NewSyncQueryService(userRepo, noteRepo, categoryRepo)
	recordService := service.NewSyncRecordService(recordRepo, userRepo, noteRepo, categoryRepo, wsManager, cfg.Sync.RecordsMaxLimit)
	conflictService := service.NewConflictService(noteRepo, categoryRepo, wsManager, service.ConflictOptions{
		Workers:         cfg.Sync.ConflictWorkers,
		DuplicateSuffix: cfg.Sync.DuplicateSuffix,
		Debug:           cfg.IsDebug(),
	})

	wsManager.SetMessageHandler(handler.NewWebSocketMessageHandler(wsManager, queryService))

	limits := handler.UploadLimits{
		MaxFileSize: cfg.Upload.MaxFileSize,
		MaxFiles:    cfg.Upload.MaxFilesPerRequest,
	}

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService, limits)
	noteHandler := handler.NewNoteHandler(noteService, limits)
	categoryHandler := handler.NewCategoryHandler(categoryService)
	syncHandler := handler.NewSyncHandler(queryService, recordService, conflictService)
	uploadHandler := handler.NewUploadHandler(files)
	wsHandler := handler.NewWebSocketHandler(
		wsManager,
		cfg.JWT.Secret,
		cfg.WebSocket.ReadBufferSize,
		cfg.WebSocket.WriteBufferSize,
		cfg.CORS.AllowedOrigins,
	)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))
	r.Use(middleware.DeviceMiddleware())

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/refresh", authHandler.Refresh).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST", "OPTIONS")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.JWT.Secret))

	protected.HandleFunc("/users/me", userHandler.GetMe).Methods("GET", "OPTIONS")
	protected.HandleFunc("/users/me", userHandler.UpdateMe).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/users/me/sync-settings", userHandler.UpdateSyncSettings).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/users/me/avatar", userHandler.UploadAvatar).Methods("POST", "OPTIONS")

	// Fixed paths go before the {id} routes they would otherwise match.
	protected.HandleFunc("/notes/sync/pending", syncHandler.PendingNotes).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes", noteHandler.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/notes", noteHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}", noteHandler.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}", noteHandler.Update).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/notes/{id}", noteHandler.Delete).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/notes/{id}/restore", noteHandler.Restore).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/notes/{id}/images", noteHandler.AddImages).Methods("POST", "OPTIONS")
	protected.HandleFunc("/notes/{id}/images/{index}", noteHandler.DeleteImage).Methods("DELETE", "OPTIONS")

	protected.HandleFunc("/categories/sync/pending", syncHandler.PendingCategories).Methods("GET", "OPTIONS")
	protected.HandleFunc("/categories/batch", categoryHandler.CreateBatch).Methods("POST", "OPTIONS")
	protected.HandleFunc("/categories", categoryHandler.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/categories", categoryHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/categories/{id}", categoryHandler.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/categories/{id}", categoryHandler.Update).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/categories/{id}", categoryHandler.Delete).Methods("DELETE", "OPTIONS")

	protected.HandleFunc("/sync/pending", syncHandler.Pending).Methods("GET", "OPTIONS")
	protected.HandleFunc("/sync/full", syncHandler.Full).Methods("GET", "OPTIONS")
	protected.HandleFunc("/sync/records", syncHandler.CreateRecord).Methods("POST", "OPTIONS")
	protected.HandleFunc("/sync/records", syncHandler.ListRecords).Methods("GET", "OPTIONS")
	protected.HandleFunc("/sync/records/{id}", syncHandler.GetRecord).Methods("GET", "OPTIONS")
	protected.HandleFunc("/sync/records/{id}", syncHandler.UpdateRecord).Methods("PATCH", "PUT", "OPTIONS")
	protected.HandleFunc("/sync/resolve-conflicts", syncHandler.ResolveConflicts).Methods("POST", "OPTIONS")

	r.HandleFunc("/uploads/{user}/{file}", uploadHandler.Serve).Methods("GET")
	r.HandleFunc("/ws", wsHandler.HandleConnection)

	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.HandleFunc("/", rootHandler).Methods("GET")

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting YeeNote Sync Server on %s (env: %s, uploads: %s)", addr, cfg.Server.Env, cfg.Upload.Backend)
		log.Printf("Connected to CouchDB at %s:%s", cfg.Database.Host, cfg.Database.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	wsManager.Stop()

	if err := client.Close(); err != nil {
		log.Printf("Failed to close CouchDB client: %v", err)
	}

	log.Println("Server stopped gracefully")
}

// setupLogging sends the standard logger to stdout and, when a file is
// configured, to a rotating log file as well.
func setupLogging(cfg config.LoggingConfig) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if cfg.File == "" {
		return nil
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	return rotator
}

func newFileStorage(ctx context.Context, cfg *config.Config) (storage.FileStorage, error) {
	if cfg.Upload.Backend == config.UploadBackendS3 {
		return storage.NewS3Storage(ctx, cfg.S3)
	}
	return storage.NewLocalStorage(cfg.Upload.Path, cfg.Server.PublicURL)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"yeenote-sync-server"}`))
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"YeeNote Sync Server API","version":"1.0.0","endpoints":{"/api/v1/auth/register":"POST","/api/v1/auth/login":"POST","/api/v1/sync/pending":"GET (protected)","/api/v1/sync/resolve-conflicts":"POST (protected)","/ws":"GET (websocket)"}}`))
}
