package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Oniqq60/meeting_capture_service/internal/cfg"
	"github.com/Oniqq60/meeting_capture_service/internal/notify"
)

func main() {
	config := cfg.LoadConfig()
	if len(config.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required")
	}

	groupID := config.KafkaGroupID
	if groupID == "" {
		groupID = "meeting-notifier"
	}

	notifier := notify.NewDesktopNotifier(notify.NewLogNotifier(nil))
	consumer := notify.NewKafkaConsumer(config.KafkaBrokers, config.KafkaTopic, groupID, notifier)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		log.Println("shutdown signal received")
		cancel()
	}()

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("consumer error: %v", err)
	}
}
