package capture

import (
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindAudio Kind = "audio"
	KindFile  Kind = "file"
)

// Artifact — один захваченный результат (запись или выбранный файл).
// Буфер принадлежит сессии до передачи в workflow, после передачи — вызывающему.
type Artifact struct {
	Kind          Kind
	Payload       []byte
	MIMEType      string
	SizeBytes     int64
	SuggestedName string
}

var (
	ErrEmptyFileName = errors.New("file name required")
	ErrEmptyPayload  = errors.New("file payload required")
)

// NewFileArtifact оборачивает выбранный пользователем файл.
func NewFileArtifact(name, mimeType string, payload []byte) (*Artifact, error) {
	if name == "" {
		return nil, ErrEmptyFileName
	}
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	return &Artifact{
		Kind:          KindFile,
		Payload:       payload,
		MIMEType:      mimeType,
		SizeBytes:     int64(len(payload)),
		SuggestedName: name,
	}, nil
}

// NewAudioArtifact собирает запись из буферизованных чанков. Имя выводится из
// времени захвата с наносекундной точностью, чтобы имена не пересекались.
func NewAudioArtifact(payload []byte, mimeType string, capturedAt time.Time) *Artifact {
	return &Artifact{
		Kind:          KindAudio,
		Payload:       payload,
		MIMEType:      mimeType,
		SizeBytes:     int64(len(payload)),
		SuggestedName: fmt.Sprintf("audio_%d%s", capturedAt.UnixNano(), extensionFor(mimeType)),
	}
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	}
	return ".bin"
}
