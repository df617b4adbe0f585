package cfg

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort          string
	MongoURI          string
	MongoDatabase     string
	MongoCollection   string
	MinioEndpoint     string
	MinioAccessKey    string
	MinioSecretKey    string
	MinioUseSSL       bool
	MinioBucket       string
	PostgresDSN       string
	RedisAddr         string
	RedisPassword     string
	KafkaBrokers      []string
	KafkaTopic        string
	KafkaGroupID      string
	JWTSecret         string
	JWTTTLSeconds     int64
	GoogleIssuer      string
	GoogleClientID    string
	MaxUploadBytes    int64
	RecorderInput     string
	RecorderFormat    string
	CORSAllowedOrigin string
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not found, using environment variables")
	}

	cfg := Config{
		HTTPPort:          os.Getenv("HTTP_PORT"),
		MongoURI:          os.Getenv("MONGODB_URI"),
		MongoDatabase:     os.Getenv("MONGODB_DATABASE"),
		MongoCollection:   os.Getenv("MONGODB_COLLECTION"),
		MinioEndpoint:     os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey:    os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:    os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:       os.Getenv("MINIO_BUCKET"),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		KafkaTopic:        os.Getenv("KAFKA_TOPIC"),
		KafkaGroupID:      os.Getenv("KAFKA_GROUP_ID"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		GoogleIssuer:      os.Getenv("GOOGLE_ISSUER"),
		GoogleClientID:    os.Getenv("GOOGLE_CLIENT_ID"),
		RecorderInput:     os.Getenv("RECORDER_INPUT"),
		RecorderFormat:    os.Getenv("RECORDER_FORMAT"),
		CORSAllowedOrigin: os.Getenv("CORS_ALLOWED_ORIGINS"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if trimmed := strings.TrimSpace(b); trimmed != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, trimmed)
			}
		}
	}

	if cfg.MongoCollection == "" {
		cfg.MongoCollection = "meetings"
	}

	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = "meeting-events"
	}

	// MINIO_USE_SSL optional
	if os.Getenv("MINIO_USE_SSL") == "true" || os.Getenv("MINIO_USE_SSL") == "1" {
		cfg.MinioUseSSL = true
	}

	// MAX_UPLOAD_SIZE optional, default 100MB
	if maxStr := os.Getenv("MAX_UPLOAD_SIZE"); maxStr != "" {
		if v, err := strconv.ParseInt(maxStr, 10, 64); err == nil {
			cfg.MaxUploadBytes = v
		}
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 100 * 1024 * 1024 // 100 MB
	}

	// JWT_TTL_SECONDS optional, default 24h
	if ttlStr := os.Getenv("JWT_TTL_SECONDS"); ttlStr != "" {
		if v, err := strconv.ParseInt(ttlStr, 10, 64); err == nil && v > 0 {
			cfg.JWTTTLSeconds = v
		}
	}
	if cfg.JWTTTLSeconds == 0 {
		cfg.JWTTTLSeconds = 24 * 60 * 60
	}

	if cfg.GoogleIssuer == "" {
		cfg.GoogleIssuer = "https://accounts.google.com"
	}

	return cfg
}
