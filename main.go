package main

import (
	"log"

	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/api"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/config"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/handlers"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/liff"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/logger"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/middleware"
	"github.com/Siwakon-Hongwingjan/lowest-carbon-frontend/internal/session"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	logger.Initialize(logger.ParseLevel(cfg.LogLevel), cfg.IsDevelopment())

	db, err := session.Initialize(cfg.DatabasePath)
	if err != nil {
		log.Fatal("Failed to initialize session database: ", err)
	}
	defer db.Close()

	if err := session.Migrate(db); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	var store session.Store
	if cfg.SessionEncryptionKey != "" {
		cipher, err := session.NewSecretboxCipher(cfg.SessionEncryptionKey)
		if err != nil {
			log.Fatal("Failed to set up session encryption: ", err)
		}
		store = session.NewEncryptedSQLiteStore(db, cipher)
		log.Println("Session store encryption enabled")
	} else {
		store = session.NewSQLiteStore(db)
		log.Println("Session store encryption disabled - SESSION_ENCRYPTION_KEY not set")
	}

	apiClient, err := api.New(cfg, store)
	if err != nil {
		log.Fatal("Failed to create API client: ", err)
	}

	liffClient := liff.New(cfg)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.SetFuncMap(handlers.TemplateFuncMap())
	r.LoadHTMLGlob("templates/*.html")
	r.Static("/static", "./static")

	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.RateLimit(cfg))

	handlers.SetupRoutes(r, cfg, store, apiClient, liffClient)

	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(r.Run(":" + cfg.Port))
}
