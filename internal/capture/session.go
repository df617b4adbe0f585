package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateRecording
	StateCaptured
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateCaptured:
		return "captured"
	}
	return "unknown"
}

var ErrInvalidState = errors.New("invalid session state")

// Session управляет жизненным циклом получения одного артефакта:
// idle → recording → captured, либо idle → captured для выбора файла.
// Предусловия операций проверяет сама сессия.
type Session struct {
	device Device

	mu        sync.Mutex
	state     State
	stream    Stream
	collected chan []byte
	artifact  *Artifact
}

func NewSession(device Device) *Session {
	return &Session{device: device}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BeginRecording запрашивает микрофон и начинает буферизацию чанков в порядке
// поступления. При отказе устройства сессия остается в idle, повторных попыток нет.
func (s *Session) BeginRecording(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("%w: begin recording requires idle, got %s", ErrInvalidState, s.state)
	}

	stream, err := s.device.Acquire(ctx)
	if err != nil {
		return err
	}

	collected := make(chan []byte, 1)
	go func() {
		var buf []byte
		for chunk := range stream.Chunks() {
			buf = append(buf, chunk...)
		}
		collected <- buf
	}()

	s.stream = stream
	s.collected = collected
	s.state = StateRecording
	return nil
}

// EndRecording останавливает захват и собирает артефакт. Устройство
// освобождается на любом исходе этого пути.
func (s *Session) EndRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return fmt.Errorf("%w: end recording requires recording, got %s", ErrInvalidState, s.state)
	}

	stopErr := s.stream.Stop()
	payload := <-s.collected
	mimeType := s.stream.MIMEType()

	s.stream = nil
	s.collected = nil

	if stopErr != nil {
		s.state = StateIdle
		return stopErr
	}

	s.artifact = NewAudioArtifact(payload, mimeType, time.Now())
	s.state = StateCaptured
	return nil
}

// SelectFile оборачивает выбранный файл как артефакт, минуя запись.
// Тип и размер здесь не проверяются, accept-список — дело UI.
func (s *Session) SelectFile(name, mimeType string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return fmt.Errorf("%w: select file requires idle, got %s", ErrInvalidState, s.state)
	}

	artifact, err := NewFileArtifact(name, mimeType, payload)
	if err != nil {
		return err
	}

	s.artifact = artifact
	s.state = StateCaptured
	return nil
}

// Artifact возвращает захваченный артефакт без передачи владения
// (nil вне состояния captured).
func (s *Session) Artifact() *Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifact
}

// Take передает владение артефактом вызывающему и возвращает сессию в idle.
func (s *Session) Take() (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCaptured {
		return nil, fmt.Errorf("%w: take requires captured, got %s", ErrInvalidState, s.state)
	}

	artifact := s.artifact
	s.artifact = nil
	s.state = StateIdle
	return artifact, nil
}

// Discard отбрасывает артефакт и возвращает сессию в idle.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCaptured {
		return fmt.Errorf("%w: discard requires captured, got %s", ErrInvalidState, s.state)
	}

	s.artifact = nil
	s.state = StateIdle
	return nil
}
