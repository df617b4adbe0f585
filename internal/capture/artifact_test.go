package capture

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestNewAudioArtifactName(t *testing.T) {
	capturedAt := time.Date(2025, 3, 14, 15, 9, 26, 535897932, time.UTC)
	artifact := NewAudioArtifact([]byte("RIFF"), "audio/wav", capturedAt)

	want := fmt.Sprintf("audio_%d.wav", capturedAt.UnixNano())
	if artifact.SuggestedName != want {
		t.Fatalf("suggested name = %q, want %q", artifact.SuggestedName, want)
	}
	if artifact.Kind != KindAudio {
		t.Fatalf("kind = %s", artifact.Kind)
	}
	if artifact.SizeBytes != 4 {
		t.Fatalf("size = %d", artifact.SizeBytes)
	}
}

func TestNewAudioArtifactExtension(t *testing.T) {
	cases := []struct {
		mime string
		ext  string
	}{
		{mime: "audio/wav", ext: ".wav"},
		{mime: "audio/webm", ext: ".webm"},
		{mime: "audio/ogg", ext: ".ogg"},
		{mime: "audio/mpeg", ext: ".mp3"},
		{mime: "application/unknown", ext: ".bin"},
	}
	for _, tc := range cases {
		t.Run(tc.mime, func(t *testing.T) {
			artifact := NewAudioArtifact([]byte("x"), tc.mime, time.Now())
			if !strings.HasSuffix(artifact.SuggestedName, tc.ext) {
				t.Fatalf("name %q does not end with %q", artifact.SuggestedName, tc.ext)
			}
		})
	}
}

func TestNewFileArtifactValidation(t *testing.T) {
	if _, err := NewFileArtifact("", "text/plain", []byte("x")); !errors.Is(err, ErrEmptyFileName) {
		t.Fatalf("empty name error = %v", err)
	}
	if _, err := NewFileArtifact("a.txt", "text/plain", nil); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("empty payload error = %v", err)
	}

	artifact, err := NewFileArtifact("a.txt", "text/plain", []byte("hello"))
	if err != nil {
		t.Fatalf("NewFileArtifact: %v", err)
	}
	if artifact.Kind != KindFile || artifact.SizeBytes != 5 {
		t.Fatalf("artifact = %+v", artifact)
	}
}
