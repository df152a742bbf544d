package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/agenthub/backend/internal/config"
	"github.com/agenthub/backend/internal/database"
	"github.com/agenthub/backend/internal/logger"
	"github.com/agenthub/backend/internal/seed"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Initialize(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	if os.Getenv("ENVIRONMENT") == "production" {
		log.Fatal("Refusing to seed a production database")
	}

	if err := database.Initialize(cfg.Database.Driver, cfg.Database.URL); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	seeder := seed.NewSeeder(database.DB)
	if err := seeder.SeedDev(); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Println("Database seeded")
}
