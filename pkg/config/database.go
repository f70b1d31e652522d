package config

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"stakeledger/internal/models"
)

var DB *gorm.DB

// InitDB initializes the database connection and brings the schema up to
// date, with gorm AutoMigrate by default or the SQL files in migrations/
// when DB_MIGRATE=sql.
func InitDB() {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		Env("DB_PORT", "5432"),
		Env("DB_SSLMODE", "disable"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to get database instance:", err)
	}
	sqlDB.SetMaxIdleConns(EnvInt("DB_MAX_IDLE_CONNS", 10))
	sqlDB.SetMaxOpenConns(EnvInt("DB_MAX_OPEN_CONNS", 50))
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db

	switch Env("DB_MIGRATE", "auto") {
	case "sql":
		ExecuteMigrations()
	case "none":
	default:
		if err := DB.AutoMigrate(models.All()...); err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
	}
}
