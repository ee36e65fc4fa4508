package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/jayakanthcm/moodcast-backend/internal/config"
	"github.com/jayakanthcm/moodcast-backend/internal/database"
	"github.com/jayakanthcm/moodcast-backend/internal/handlers"
	"github.com/jayakanthcm/moodcast-backend/internal/middleware"
	"github.com/jayakanthcm/moodcast-backend/internal/presence"
	"github.com/jayakanthcm/moodcast-backend/internal/routes"
	"github.com/jayakanthcm/moodcast-backend/internal/services"
	"github.com/jayakanthcm/moodcast-backend/pkg/utils"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	// Message encryption is optional but loudly absent.
	var cipher *utils.MessageCipher
	if cfg.EncryptionKey == "" {
		log.Println("⚠️  WARNING: ENCRYPTION_KEY not set. Messages will be stored in plaintext.")
		log.Println("   To generate a key, run: openssl rand -base64 32")
	} else {
		var err error
		cipher, err = utils.NewMessageCipher(cfg.EncryptionKey)
		if err != nil {
			log.Printf("⚠️  WARNING: ENCRYPTION_KEY is invalid: %v", err)
			log.Println("   Messages will be stored in plaintext.")
		} else {
			log.Println("✅ Message encryption configured")
		}
	}

	// Connect to PostgreSQL (persistent profiles)
	log.Printf("Connecting to PostgreSQL...")
	pg, err := database.ConnectPostgres(cfg.PostgresURI)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer pg.Close()

	// Connect to Redis (event bus, caches, rate limiting)
	log.Printf("Connecting to Redis...")
	rdb, err := database.ConnectRedis(cfg.RedisURI)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Connect to MongoDB (live auras, conversations, messages)
	log.Printf("Connecting to MongoDB...")
	mongoClient, db, err := database.ConnectMongo(cfg.MongoURI)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		if err := database.DisconnectMongo(mongoClient); err != nil {
			log.Printf("Failed to disconnect MongoDB: %v", err)
		}
	}()

	// Event bus: one Redis listener per instance
	bus := services.NewBus(rdb)
	bus.Start(context.Background())

	// Presence store + feed
	store := presence.NewStore(db, bus)
	if err := store.EnsureIndexes(context.Background()); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure presence indexes: %v", err)
	} else {
		log.Println("✅ Presence indexes ensured")
	}
	feed := presence.NewFeed(store, bus)

	// Chat
	chatService := services.NewChatService(db, rdb, bus, cipher)
	if err := chatService.EnsureIndexes(context.Background()); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure chat indexes: %v", err)
	} else {
		log.Println("✅ Chat indexes ensured")
	}

	// Profiles
	profileService := services.NewProfileService(pg)

	// Icon uploads (optional)
	var iconService *services.IconService
	if cfg.CloudinaryName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		iconService, err = services.NewIconService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			log.Printf("Warning: Failed to initialize Cloudinary: %v", err)
			log.Println("Icon uploads will not be available")
			iconService = nil
		} else {
			log.Println("✅ Cloudinary icon service initialized")
		}
	} else {
		log.Println("Warning: Cloudinary credentials not found. Icon uploads will not be available")
	}

	// Setup router
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RateLimit(rdb))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	routes.SetupRoutes(r, routes.Handlers{
		Presence: handlers.NewPresenceHandler(store),
		Radar:    handlers.NewRadarHandler(feed, store),
		Chat:     handlers.NewChatHandler(chatService, bus),
		Profile:  handlers.NewProfileHandler(profileService),
		Upload:   handlers.NewUploadHandler(iconService),
	})

	log.Printf("🚀 MoodCast backend running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
