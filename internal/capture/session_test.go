package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeStream struct {
	chunks   chan []byte
	mime     string
	stopErr  error
	stopOnce sync.Once
	stopped  bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		chunks: make(chan []byte, 16),
		mime:   "audio/wav",
	}
}

func (s *fakeStream) Chunks() <-chan []byte { return s.chunks }
func (s *fakeStream) MIMEType() string      { return s.mime }

func (s *fakeStream) Stop() error {
	s.stopOnce.Do(func() {
		s.stopped = true
		close(s.chunks)
	})
	return s.stopErr
}

type fakeDevice struct {
	stream   *fakeStream
	err      error
	acquired int
}

func (d *fakeDevice) Acquire(ctx context.Context) (Stream, error) {
	d.acquired++
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

func TestRecordingLifecycle(t *testing.T) {
	stream := newFakeStream()
	session := NewSession(&fakeDevice{stream: stream})

	if err := session.BeginRecording(context.Background()); err != nil {
		t.Fatalf("BeginRecording: %v", err)
	}
	if got := session.State(); got != StateRecording {
		t.Fatalf("state = %s, want recording", got)
	}

	stream.chunks <- []byte("abc")
	stream.chunks <- []byte("def")

	if err := session.EndRecording(); err != nil {
		t.Fatalf("EndRecording: %v", err)
	}
	if !stream.stopped {
		t.Fatal("stream was not stopped")
	}
	if got := session.State(); got != StateCaptured {
		t.Fatalf("state = %s, want captured", got)
	}

	artifact, err := session.Take()
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if artifact.Kind != KindAudio {
		t.Fatalf("kind = %s, want audio", artifact.Kind)
	}
	if string(artifact.Payload) != "abcdef" {
		t.Fatalf("payload = %q, want chunks concatenated in order", artifact.Payload)
	}
	if artifact.SizeBytes != 6 {
		t.Fatalf("size = %d, want 6", artifact.SizeBytes)
	}
	if artifact.MIMEType != "audio/wav" {
		t.Fatalf("mime = %q", artifact.MIMEType)
	}

	if got := session.State(); got != StateIdle {
		t.Fatalf("state after take = %s, want idle", got)
	}
	if session.Artifact() != nil {
		t.Fatal("artifact retained after take")
	}
}

func TestBeginRecordingDeviceErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{name: "permission denied", err: ErrPermissionDenied},
		{name: "device failure", err: ErrDeviceFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			session := NewSession(&fakeDevice{err: tc.err})

			err := session.BeginRecording(context.Background())
			if !errors.Is(err, tc.err) {
				t.Fatalf("BeginRecording error = %v, want %v", err, tc.err)
			}
			if got := session.State(); got != StateIdle {
				t.Fatalf("state = %s, want idle after device error", got)
			}
		})
	}
}

func TestEndRecordingRequiresRecordingState(t *testing.T) {
	session := NewSession(&fakeDevice{stream: newFakeStream()})

	if err := session.EndRecording(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("EndRecording from idle = %v, want ErrInvalidState", err)
	}
}

func TestEndRecordingReleasesDeviceOnStopError(t *testing.T) {
	stream := newFakeStream()
	stream.stopErr = errors.New("flush failed")
	session := NewSession(&fakeDevice{stream: stream})

	if err := session.BeginRecording(context.Background()); err != nil {
		t.Fatalf("BeginRecording: %v", err)
	}
	if err := session.EndRecording(); err == nil {
		t.Fatal("EndRecording should surface stop error")
	}
	if !stream.stopped {
		t.Fatal("device must be released even when stop fails")
	}
	if got := session.State(); got != StateIdle {
		t.Fatalf("state = %s, want idle", got)
	}
}

func TestSelectFile(t *testing.T) {
	session := NewSession(&fakeDevice{stream: newFakeStream()})

	if err := session.SelectFile("notes.pdf", "application/pdf", []byte("%PDF")); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	if got := session.State(); got != StateCaptured {
		t.Fatalf("state = %s, want captured", got)
	}

	artifact := session.Artifact()
	if artifact == nil || artifact.Kind != KindFile {
		t.Fatalf("artifact = %+v, want file kind", artifact)
	}
	if artifact.SuggestedName != "notes.pdf" {
		t.Fatalf("suggested name = %q", artifact.SuggestedName)
	}
}

func TestSelectFileWhileRecording(t *testing.T) {
	stream := newFakeStream()
	session := NewSession(&fakeDevice{stream: stream})

	if err := session.BeginRecording(context.Background()); err != nil {
		t.Fatalf("BeginRecording: %v", err)
	}

	err := session.SelectFile("notes.pdf", "application/pdf", []byte("%PDF"))
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("SelectFile while recording = %v, want ErrInvalidState", err)
	}
}

func TestDiscardReturnsToCleanIdle(t *testing.T) {
	session := NewSession(&fakeDevice{stream: newFakeStream()})

	if err := session.SelectFile("a.txt", "text/plain", []byte("x")); err != nil {
		t.Fatalf("SelectFile: %v", err)
	}
	if err := session.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if got := session.State(); got != StateIdle {
		t.Fatalf("state = %s, want idle", got)
	}
	if session.Artifact() != nil {
		t.Fatal("artifact retained after discard")
	}

	// Из чистого idle операции снова доступны
	if err := session.SelectFile("b.txt", "text/plain", []byte("y")); err != nil {
		t.Fatalf("SelectFile after discard: %v", err)
	}
}

func TestDiscardRequiresCapturedState(t *testing.T) {
	session := NewSession(&fakeDevice{stream: newFakeStream()})

	if err := session.Discard(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Discard from idle = %v, want ErrInvalidState", err)
	}
}
