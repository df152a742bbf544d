package database

import (
	"fmt"
	"os"
	"time"

	"github.com/agenthub/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connection
var DB *gorm.DB

// Initialize creates and configures the database connection.
// driver is "postgres" or "sqlite"; url is the DSN for the chosen driver.
// Empty arguments fall back to DATABASE_DRIVER / DATABASE_URL environment
// variables, then to individual DB_* components for postgres.
func Initialize(driver, url string) error {
	if driver == "" {
		driver = getEnvOrDefault("DATABASE_DRIVER", "postgres")
	}
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}

	if url == "" && driver == "postgres" {
		host := getEnvOrDefault("DB_HOST", "localhost")
		port := getEnvOrDefault("DB_PORT", "5432")
		user := getEnvOrDefault("DB_USER", "postgres")
		password := getEnvOrDefault("DB_PASSWORD", "")
		dbname := getEnvOrDefault("DB_NAME", "agenthub")
		sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

		url = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}
	if url == "" && driver == "sqlite" {
		url = "agenthub.db"
	}

	gormLogger := logger.Default
	if os.Getenv("ENVIRONMENT") == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	gormConfig := &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(url), gormConfig)
	default:
		db, err = gorm.Open(postgres.Open(url), gormConfig)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db
	return nil
}

// Migrate runs auto-migration for all models
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	if DB.Dialector.Name() == "postgres" {
		// gen_random_uuid() needs pgcrypto on older postgres versions
		if err := DB.Exec("CREATE EXTENSION IF NOT EXISTS pgcrypto").Error; err != nil {
			return fmt.Errorf("failed to enable pgcrypto: %w", err)
		}
	}

	err := DB.AutoMigrate(
		&models.User{},
		&models.Agent{},
		&models.AgentView{},
		&models.AgentClick{},
		&models.AgentSession{},
		&models.AgentRating{},
		&models.AgentReview{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createIndexes creates performance and uniqueness indexes
func createIndexes() error {
	if DB.Dialector.Name() == "postgres" {
		DB.Exec("CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email))")
		DB.Exec("CREATE INDEX IF NOT EXISTS idx_users_username_lower ON users (LOWER(username))")
	}

	// Agent catalog queries
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_agents_status_created ON agents (status, created_at DESC)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_agents_category_status ON agents (category, status)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_agents_author ON agents (author_id)")

	// View dedup lookup: most recent view for a (agent, user) pair
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_agent_views_pair_viewed ON agent_views (agent_id, user_id, viewed_at DESC)")

	// Click/session analytics
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_agent_clicks_agent_created ON agent_clicks (agent_id, created_at DESC)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_agent_sessions_agent ON agent_sessions (agent_id)")

	// One rating and one review per (agent, user)
	DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_agent_ratings_unique ON agent_ratings (agent_id, user_id)")
	DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_agent_reviews_unique ON agent_reviews (agent_id, user_id)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_agent_reviews_agent_reviewed ON agent_reviews (agent_id, reviewed_at DESC)")

	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Health checks database connectivity
func Health() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
