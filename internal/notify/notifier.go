package notify

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"time"

	"github.com/Oniqq60/meeting_capture_service/internal/meeting"
)

// Notification описывает уведомление, которое будет показано пользователю.
type Notification struct {
	Title     string
	Body      string
	MeetingID string
	OwnerID   string
	CreatedAt time.Time
}

// NewNotificationFromEvent создает Notification из события встречи.
func NewNotificationFromEvent(event meeting.MeetingEvent) Notification {
	body := fmt.Sprintf("%s (%d bytes) uploaded", event.FileName, event.SizeBytes)
	if event.Kind == "audio" {
		body = fmt.Sprintf("Recording %s (%d bytes) uploaded", event.FileName, event.SizeBytes)
	}

	return Notification{
		Title:     "Meeting saved",
		Body:      body,
		MeetingID: event.MeetingID,
		OwnerID:   event.OwnerID,
		CreatedAt: time.Now(),
	}
}

// Notifier отвечает за доставку уведомлений
type Notifier interface {
	SendNotification(ctx context.Context, notification Notification) error
}

type logNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) Notifier {
	if logger == nil {
		logger = log.Default()
	}
	return &logNotifier{logger: logger}
}

func (n *logNotifier) SendNotification(ctx context.Context, notification Notification) error {
	entry := fmt.Sprintf(
		"[NOTIFICATION] meeting=%s owner=%s title=%q body=%q at=%s",
		notification.MeetingID,
		notification.OwnerID,
		notification.Title,
		notification.Body,
		notification.CreatedAt.Format(time.RFC3339),
	)
	n.logger.Println(entry)
	return nil
}

type desktopNotifier struct {
	fallback Notifier
}

// NewDesktopNotifier показывает уведомление через notify-send, если он есть,
// иначе пишет в лог.
func NewDesktopNotifier(fallback Notifier) Notifier {
	if fallback == nil {
		fallback = NewLogNotifier(nil)
	}
	return &desktopNotifier{fallback: fallback}
}

func (n *desktopNotifier) SendNotification(ctx context.Context, notification Notification) error {
	if _, err := exec.LookPath("notify-send"); err != nil {
		return n.fallback.SendNotification(ctx, notification)
	}

	cmd := exec.CommandContext(ctx, "notify-send", notification.Title, notification.Body)
	if err := cmd.Run(); err != nil {
		return n.fallback.SendNotification(ctx, notification)
	}
	return nil
}
