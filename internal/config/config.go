package config

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aicourt/backend/internal/models"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Addr        string
	DatabaseURL string
	JWTSecret   []byte
	CORSOrigin  string
	LogLevel    string

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	KafkaAddress string
	KafkaTopic   string
}

func must(v string, name string) string {
	if v == "" {
		log.Fatalf("missing required env %s", name)
	}
	return v
}

func getenvDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// Load reads configuration from .env (if present) and the process
// environment. A missing signing secret is fatal here: without it the whole
// auth subsystem cannot issue or verify a single token.
func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found: %v, using system environment", err)
	}

	return &Config{
		Addr:        getenvDefault("LISTEN_ADDR", ":5000"),
		DatabaseURL: must(os.Getenv("DATABASE_URL"), "DATABASE_URL"),
		JWTSecret:   []byte(must(os.Getenv("JWT_HS256_SECRET"), "JWT_HS256_SECRET")),
		CORSOrigin:  getenvDefault("CORS_ORIGIN", "*"),
		LogLevel:    getenvDefault("LOG_LEVEL", "info"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    getenvDefault("S3_REGION", "us-east-1"),
		S3Bucket:    must(os.Getenv("S3_BUCKET"), "S3_BUCKET"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),

		KafkaAddress: os.Getenv("KAFKA_ADDRESS"),
		KafkaTopic:   getenvDefault("KAFKA_TOPIC", "audit_events"),
	}
}

func (c *Config) KafkaBrokers() []string {
	if c.KafkaAddress == "" {
		return nil
	}
	return strings.Split(c.KafkaAddress, ",")
}

func configurePool(sqlDB *sql.DB) {
	const (
		maxOpenConns    = 20
		maxIdleConns    = 10
		connMaxLifetime = 30 * time.Minute
		connMaxIdleTime = 5 * time.Minute
	)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
}

func InitDB(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	configurePool(sqlDB)
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Document{}); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return db, nil
}
