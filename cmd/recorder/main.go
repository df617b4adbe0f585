package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Oniqq60/meeting_capture_service/internal/blob"
	"github.com/Oniqq60/meeting_capture_service/internal/capture"
	"github.com/Oniqq60/meeting_capture_service/internal/cfg"
	"github.com/Oniqq60/meeting_capture_service/internal/docstore"
	"github.com/Oniqq60/meeting_capture_service/internal/meeting"
)

// recorder записывает звук с микрофона (или берет готовый файл) и прогоняет
// его через workflow загрузки напрямую, без HTTP сервера.
func main() {
	ownerID := flag.String("owner", "", "owner user id (required)")
	ownerEmail := flag.String("email", "", "owner email for created_by")
	filePath := flag.String("file", "", "upload this file instead of recording")
	duration := flag.Duration("duration", 0, "stop recording after this duration (default: wait for Ctrl+C)")
	flag.Parse()

	if *ownerID == "" {
		log.Fatal("-owner is required")
	}

	config := cfg.LoadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(config.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect mongo: %v", err)
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
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

	workflow := meeting.NewWorkflow(blobs, docs, config.MongoCollection)
	if len(config.KafkaBrokers) > 0 {
		producer := meeting.NewKafkaProducer(config.KafkaBrokers, config.KafkaTopic)
		defer producer.Close()
		workflow = workflow.WithEvents(producer)
	}

	var artifact *capture.Artifact
	if *filePath != "" {
		artifact = loadFile(*filePath)
	} else {
		artifact = record(config, *duration)
	}

	owner := meeting.Owner{ID: *ownerID, Label: *ownerEmail}

	onProgress := func(p blob.Progress) {
		fmt.Printf("\ruploading... %3.0f%%", p.Percent())
	}

	id, err := workflow.Run(context.Background(), artifact, owner, onProgress)
	if err != nil {
		fmt.Println()
		log.Fatalf("upload failed: %v", err)
	}

	fmt.Printf("\ruploading... 100%%\n")
	fmt.Printf("meeting saved: %s (%s, %d bytes)\n", id, artifact.SuggestedName, artifact.SizeBytes)
}

func record(config cfg.Config, duration time.Duration) *capture.Artifact {
	device := capture.NewFFmpegDevice(config.RecorderInput, config.RecorderFormat)
	session := capture.NewSession(device)

	if err := session.BeginRecording(context.Background()); err != nil {
		log.Fatalf("failed to start recording: %v", err)
	}

	if duration > 0 {
		fmt.Printf("recording for %s...\n", duration)
		time.Sleep(duration)
	} else {
		fmt.Println("recording... press Ctrl+C to stop")
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		fmt.Println()
	}

	if err := session.EndRecording(); err != nil {
		log.Fatalf("failed to stop recording: %v", err)
	}

	artifact, err := session.Take()
	if err != nil {
		log.Fatalf("failed to take artifact: %v", err)
	}
	return artifact
}

func loadFile(path string) *capture.Artifact {
	payload, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to read file: %v", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	artifact, err := capture.NewFileArtifact(filepath.Base(path), mimeType, payload)
	if err != nil {
		log.Fatalf("invalid file: %v", err)
	}
	return artifact
}
