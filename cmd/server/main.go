package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Oniqq60/meeting_capture_service/internal/auth"
	"github.com/Oniqq60/meeting_capture_service/internal/blob"
	"github.com/Oniqq60/meeting_capture_service/internal/cfg"
	"github.com/Oniqq60/meeting_capture_service/internal/docstore"
	"github.com/Oniqq60/meeting_capture_service/internal/meeting"
	"github.com/Oniqq60/meeting_capture_service/internal/middleware"
)

func main() {
	config := cfg.LoadConfig()
	if len(config.JWTSecret) < 32 {
		log.Fatalf("JWT_SECRET must be at least 32 characters long for security")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(config.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect mongo: %v", err)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Printf("mongo disconnect error: %v", err)
		}
	}()

	docs := docstore.NewMongoStore(mongoClient.Database(config.MongoDatabase))

	blobs, err := blob.NewMinioStore(
		config.MinioEndpoint,
		config.MinioAccessKey,
		config.MinioSecretKey,
		config.MinioUseSSL,
		config.MinioBucket,
	)
	if err != nil {
		log.Fatalf("failed to init minio: %v", err)
	}

	db, err := gorm.Open(postgres.Open(config.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	if err := db.AutoMigrate(&auth.User{}); err != nil {
		log.Fatalf("failed to migrate users: %v", err)
	}

	var redisClient *redis.Client
	if config.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       0,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
	}

	repo := auth.NewRepository(db)
	var googleVerifier auth.GoogleTokenVerifier
	if config.GoogleClientID != "" {
		googleVerifier = auth.NewGoogleVerifier(config.GoogleIssuer, config.GoogleClientID)
	}
	provider := auth.NewProvider(repo, googleVerifier, redisClient, []byte(config.JWTSecret), config.JWTTTLSeconds)
	authorizer := auth.NewAuthorizer(repo, redisClient, []byte(config.JWTSecret))
	loginLimiter := middleware.NewLimiter(5, 10*time.Minute)
	authHandler := auth.NewHandler(provider, authorizer, repo, loginLimiter)

	workflow := meeting.NewWorkflow(blobs, docs, config.MongoCollection)
	if len(config.KafkaBrokers) > 0 {
		producer := meeting.NewKafkaProducer(config.KafkaBrokers, config.KafkaTopic)
		defer producer.Close()
		workflow = workflow.WithEvents(producer)
	}

	meetingHandler := meeting.NewHandler(workflow, docs, blobs, authorizer, config.MaxUploadBytes, config.MongoCollection)

	mux := http.NewServeMux()
	mux.Handle("/auth/", authHandler.Routes())
	mux.Handle("/meetings", meetingHandler.Routes())
	mux.Handle("/meetings/", meetingHandler.Routes())
	mux.Handle("/files", meetingHandler.Routes())

	limiter := middleware.NewLimiter(100, time.Minute)
	handler := middleware.SecurityHeaders(
		middleware.CORS(config.CORSAllowedOrigin)(
			limiter.Middleware(mux),
		),
	)

	httpPort := config.HTTPPort
	if httpPort == "" {
		httpPort = "8082"
	}
	httpServer := &http.Server{
		Addr:    ":" + httpPort,
		Handler: handler,
	}

	go func() {
		log.Printf("HTTP server listening on :%s", httpPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
}
