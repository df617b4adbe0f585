package capture

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied — доступ к микрофону не разрешен пользователем или системой.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrDeviceFailure — устройство не удалось открыть или оно отказало.
	ErrDeviceFailure = errors.New("audio device failure")
)

// Device выдает поток аудио с микрофона. Одновременно устройство может держать
// только одна сессия.
type Device interface {
	Acquire(ctx context.Context) (Stream, error)
}

// Stream — открытый поток записи. Stop останавливает захват, дожидается
// остатка данных и освобождает устройство; после Stop канал Chunks закрыт.
type Stream interface {
	Chunks() <-chan []byte
	MIMEType() string
	Stop() error
}
