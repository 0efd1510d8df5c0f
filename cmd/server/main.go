package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/inspectsync/server/internal/cache"
	"github.com/inspectsync/server/internal/config"
	"github.com/inspectsync/server/internal/handlers"
	custommw "github.com/inspectsync/server/internal/middleware"
	"github.com/inspectsync/server/internal/observability"
	"github.com/inspectsync/server/internal/repository"
	"github.com/inspectsync/server/internal/services"
)

const serviceVersion = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize telemetry
	ctx := context.Background()
	telemetry, err := observability.Initialize(ctx, observability.NewConfig("inspectsync-server", serviceVersion))
	if err != nil {
		log.Printf("Warning: telemetry initialization failed: %v", err)
	}

	// Identity, templates and signatures always live in the embedded database
	sqliteDB, err := repository.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite database: %v", err)
	}
	defer sqliteDB.Close()

	templateRepo := repository.NewTemplateRepository(sqliteDB)
	signatureRepo := repository.NewSignatureRepository(sqliteDB)
	inspectorRepo := repository.NewInspectorRepository(sqliteDB)

	// Inspection data goes to PostgreSQL when configured
	var inspectionRepo repository.InspectionRepo
	var photoRepo repository.PhotoRepo
	if cfg.UsePostgres() {
		log.Println("Using PostgreSQL for inspection data")
		pgDB, err := repository.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL database: %v", err)
		}
		defer pgDB.Close()
		inspectionRepo = repository.NewInspectionRepositoryPostgres(pgDB)
		photoRepo = repository.NewPhotoRepositoryPostgres(pgDB)
	} else {
		log.Println("Using SQLite for inspection data")
		inspectionRepo = repository.NewInspectionRepository(sqliteDB)
		photoRepo = repository.NewPhotoRepository(sqliteDB)
	}

	// Local fallback snapshot store
	snapshotStore, err := cache.NewSnapshotStore(cfg.SnapshotCache.BasePath)
	if err != nil {
		log.Fatalf("Failed to initialize snapshot store: %v", err)
	}

	// Photo blob storage
	blobStore, err := services.NewBlobStore(cfg.PhotoStorage.BasePath)
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}

	// Core services
	clock := services.SystemClock()
	bus := services.NewLifecycleBus()
	hub := services.NewSyncHub()
	go hub.Run()

	reconciler := services.NewReconciler(inspectionRepo, photoRepo, snapshotStore, clock)
	sessionManager := services.NewSessionManager(
		inspectionRepo,
		templateRepo,
		snapshotStore,
		reconciler,
		clock,
		time.Duration(cfg.Autosave.DelaySeconds)*time.Second,
		bus,
		hub,
	)
	completionService := services.NewCompletionService(inspectionRepo, signatureRepo, snapshotStore, clock, hub)
	photoPipeline := services.NewPhotoPipeline(photoRepo, blobStore, clock, cfg.PhotoStorage.MaxFileSizeMB*1024*1024)

	// Handlers
	sessionHandler := handlers.NewSessionHandler(sessionManager, completionService, bus)
	photoHandler := handlers.NewPhotoHandler(sessionManager, photoPipeline, photoRepo, blobStore)
	inspectionHandler := handlers.NewInspectionHandler(inspectionRepo)
	signatureHandler := handlers.NewSignatureHandler(signatureRepo, inspectorRepo, clock)
	templateHandler := handlers.NewTemplateHandler(templateRepo)
	healthHandler := handlers.NewHealthHandler()
	wsHandler := handlers.NewWebSocketHandler(hub)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.TracingMiddleware("inspectsync-server"))
	if httpMetrics, err := observability.NewHTTPMetrics(); err == nil {
		r.Use(observability.MetricsMiddleware(httpMetrics))
	} else {
		log.Printf("Warning: HTTP metrics disabled: %v", err)
	}
	// Optional shared perimeter key in front of the per-inspector auth,
	// carried on its own header so both can travel on one request
	if cfg.Security.APIKey != "" {
		r.Use(custommw.APIKeyAuth(cfg.Security.APIKey, "X-Service-Key"))
	}
	r.Use(custommw.InspectorAPIKeyAuth(inspectorRepo, cfg.Security.APIKeyHeader, []string{
		"/health", "/api/health",
	}))

	// Routes
	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/api/health", healthHandler.HealthCheck)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", sessionHandler.Open)
		r.Get("/{facilityID}", sessionHandler.Get)
		r.Delete("/{facilityID}", sessionHandler.Close)
		r.Post("/{facilityID}/mutate", sessionHandler.Mutate)
		r.Post("/{facilityID}/save", sessionHandler.Save)
		r.Post("/{facilityID}/complete", sessionHandler.Complete)
		r.Post("/{facilityID}/questions/{questionID}/photos", photoHandler.Upload)
		r.Delete("/{facilityID}/photos/{photoID}", photoHandler.Delete)
	})

	r.Route("/api/inspections", func(r chi.Router) {
		r.Get("/", inspectionHandler.ListByFacility)
		r.Get("/{inspectionID}", inspectionHandler.Get)
		r.Get("/{inspectionID}/photos", photoHandler.ListByInspection)
	})

	r.Get("/api/photos/{photoID}/file", photoHandler.Download)

	r.Route("/api/signature", func(r chi.Router) {
		r.Get("/", signatureHandler.Get)
		r.Put("/", signatureHandler.Put)
		r.Post("/pin", signatureHandler.SetPIN)
	})

	r.Get("/api/templates/default", templateHandler.GetDefault)
	r.Get("/api/templates/{templateID}", templateHandler.Get)

	r.Post("/api/lifecycle", sessionHandler.Lifecycle)
	r.Get("/api/ws", wsHandler.HandleConnection)

	// Create server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Longer for uploads
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("InspectSync Server starting on %s", cfg.ServerAddress)
		log.Printf("Snapshot cache path: %s", cfg.SnapshotCache.BasePath)
		log.Printf("Photo storage path: %s", cfg.PhotoStorage.BasePath)
		log.Printf("Auto-save delay: %ds", cfg.Autosave.DelaySeconds)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Flush every dirty session to the local fallback before the process exits
	bus.Publish(services.LifecycleEvent{Kind: services.LifecycleTerminate})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Printf("Warning: telemetry shutdown failed: %v", err)
		}
	}

	log.Println("Server stopped")
}
