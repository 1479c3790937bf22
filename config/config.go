package config

import (
	"fmt"
	"log"
	"os"

	"zap-shift-api/models"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB is the globally accessible database handle
var DB *gorm.DB

// JWTSecret used to sign and verify bearer tokens, read from env or fallback
var JWTSecret = []byte(getEnv("JWT_SECRET", "zap_shift_super_secret"))

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// InitDB connects to Postgres when DB_HOST is configured, otherwise falls
// back to a local sqlite file, and migrates all models.
func InitDB() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found - relying on env vars")
	}

	var (
		db  *gorm.DB
		err error
	)

	if host := os.Getenv("DB_HOST"); host != "" {
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
			host,
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", "password"),
			getEnv("DB_NAME", "zap_shift"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_SSLMODE", "disable"),
			getEnv("DB_TIMEZONE", "UTC"),
		)
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
	} else {
		db, err = gorm.Open(sqlite.Open(getEnv("SQLITE_PATH", "zap_shift.db")), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
	}
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := Migrate(db); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	DB = db
	log.Println("Database connected and migrated successfully")
}

// Migrate applies auto-migration for all models. Exposed separately so tests
// can run it against their own in-memory database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Rider{},
		&models.Parcel{},
		&models.Payment{},
	)
}
