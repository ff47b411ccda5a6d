package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/pawhaven/pawhaven-backend/internal/config"
	"github.com/pawhaven/pawhaven-backend/internal/database"
	"github.com/pawhaven/pawhaven-backend/internal/handlers"
	"github.com/pawhaven/pawhaven-backend/internal/middleware"
	"github.com/pawhaven/pawhaven-backend/internal/routes"
	"github.com/pawhaven/pawhaven-backend/internal/services"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	// Connect to PostgreSQL
	log.Printf("Connecting to PostgreSQL...")
	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer database.DisconnectPostgres()

	// Connect to Redis
	log.Printf("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer database.DisconnectRedis()

	// MongoDB holds the moderation audit trail; the API works without it.
	log.Printf("Connecting to MongoDB...")
	if err := database.ConnectMongo(cfg.MongoURI); err != nil {
		log.Printf("⚠️  WARNING: failed to connect to MongoDB: %v", err)
		log.Println("   Audit trail will be logged locally only")
	} else {
		defer database.DisconnectMongo()
		if err := services.EnsureAuditIndexes(); err != nil {
			log.Printf("⚠️  WARNING: failed to ensure audit indexes: %v", err)
		} else {
			log.Println("✅ MongoDB audit indexes ensured")
		}
		// Run daily, keep 90 days of audit events
		services.StartAuditCleanup(24, 90)
		log.Println("✅ Audit cleanup service started")
	}

	// Wire services and handlers
	mediaStore := services.PostgresMedia{}
	handlers.InitProfileStore(services.NewPostgresProfiles())
	handlers.InitModerationService(services.PostgresReports{})
	handlers.InitCatService(services.NewCatService(mediaStore, nil))

	if cfg.CloudinaryName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		if err := handlers.InitCloudinaryUploader(cfg, mediaStore); err != nil {
			log.Printf("Warning: Failed to initialize Cloudinary: %v", err)
			log.Println("Media uploads will not be available")
		} else {
			log.Println("✅ Cloudinary service initialized")
		}
	} else {
		log.Println("Warning: Cloudinary credentials not found. Media uploads will not be available")
	}

	// Setup router
	r := chi.NewRouter()

	// Custom CORS: set headers and respond to OPTIONS with 200 so preflight never gets 403
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity() {
			r.Use(mw)
		}
		log.Println("✅ Production security enabled (security headers, per-IP rate limiting)")
	}

	// Health check (no rate limit)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	routes.SetupRoutes(r)

	log.Printf("🐱 PawHaven backend running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
