package meeting

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// MeetingEvent — событие о зафиксированной встрече для Kafka.
type MeetingEvent struct {
	MeetingID string    `json:"meetingId"`
	OwnerID   string    `json:"ownerId"`
	Kind      string    `json:"kind"`
	FileName  string    `json:"fileName"`
	SizeBytes int64     `json:"sizeBytes"`
	Timestamp time.Time `json:"timestamp"`
}

type EventProducer interface {
	SendMeetingCommitted(ctx context.Context, event MeetingEvent) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
	topic  string
}

func NewKafkaProducer(brokers []string, topic string) EventProducer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	return &kafkaProducer{
		writer: writer,
		topic:  topic,
	}
}

// SendMeetingCommitted отправляет событие встречи в Kafka.
func (p *kafkaProducer) SendMeetingCommitted(ctx context.Context, event MeetingEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}

	message := kafka.Message{
		Key:   []byte(event.MeetingID),
		Value: eventJSON,
		Time:  time.Now(),
	}

	return p.writer.WriteMessages(ctx, message)
}

func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}
