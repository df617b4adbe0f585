package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/Oniqq60/meeting_capture_service/internal/meeting"
)

// Consumer читает события встреч из Kafka и превращает их в уведомления.
type Consumer interface {
	Start(ctx context.Context) error
	Close() error
}

type kafkaConsumer struct {
	reader   *kafka.Reader
	notifier Notifier
	topic    string
	groupID  string
}

func NewKafkaConsumer(brokers []string, topic, groupID string, notifier Notifier) Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})

	return &kafkaConsumer{
		reader:   reader,
		notifier: notifier,
		topic:    topic,
		groupID:  groupID,
	}
}

// Start читает сообщения в цикле до отмены контекста.
func (c *kafkaConsumer) Start(ctx context.Context) error {
	log.Printf("Kafka consumer started (topic=%s, group=%s)", c.topic, c.groupID)

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("Kafka consumer context cancelled")
				return ctx.Err()
			}
			log.Printf("kafka read error: %v", err)
			continue
		}

		var event meeting.MeetingEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("skip malformed event: %v", err)
			continue
		}

		notification := NewNotificationFromEvent(event)
		if err := c.notifier.SendNotification(ctx, notification); err != nil {
			log.Printf("notification delivery failed: %v", err)
		}
	}
}

func (c *kafkaConsumer) Close() error {
	return c.reader.Close()
}
