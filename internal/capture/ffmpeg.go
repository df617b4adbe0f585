package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

// FFmpegDevice пишет звук с микрофона через ffmpeg в stdout (mono WAV 16kHz).
type FFmpegDevice struct {
	Input  string // например ":default" для avfoundation, "default" для alsa
	Format string // avfoundation, alsa, pulse, dshow
}

// NewFFmpegDevice подставляет вход и формат по умолчанию для текущей ОС,
// если они не заданы.
func NewFFmpegDevice(input, format string) *FFmpegDevice {
	if format == "" {
		switch runtime.GOOS {
		case "darwin":
			format = "avfoundation"
		case "windows":
			format = "dshow"
		default:
			format = "alsa"
		}
	}
	if input == "" {
		if format == "avfoundation" {
			input = ":default"
		} else {
			input = "default"
		}
	}
	return &FFmpegDevice{Input: input, Format: format}
}

func (d *FFmpegDevice) Acquire(ctx context.Context) (Stream, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found", ErrDeviceFailure)
	}

	cmd := exec.Command("ffmpeg",
		"-f", d.Format,
		"-i", d.Input,
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		"pipe:1",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceFailure, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceFailure, err)
	}

	s := &ffmpegStream{
		cmd:      cmd,
		stderr:   &stderr,
		chunks:   make(chan []byte, 8),
		first:    make(chan struct{}),
		pumpDone: make(chan struct{}),
		exited:   make(chan struct{}),
	}

	go s.pump(stdout)
	go func() {
		// Wait закрывает stdout-пайп, поэтому зовем его только после того,
		// как pump дочитал поток: иначе хвост записи из буфера пайпа теряется.
		<-s.pumpDone
		_ = cmd.Wait()
		close(s.exited)
	}()

	// Ждем первые байты WAV-заголовка: если вход не открылся, ffmpeg
	// завершается сразу и по stderr видно причину.
	select {
	case <-s.first:
		return s, nil
	case <-s.exited:
		return nil, classifyFFmpegError(stderr.String())
	case <-ctx.Done():
		_ = s.Stop()
		return nil, ctx.Err()
	case <-time.After(10 * time.Second):
		_ = s.Stop()
		return nil, fmt.Errorf("%w: no data from input", ErrDeviceFailure)
	}
}

type ffmpegStream struct {
	cmd      *exec.Cmd
	stderr   *bytes.Buffer
	chunks   chan []byte
	first    chan struct{}
	pumpDone chan struct{}
	exited   chan struct{}
	once     sync.Once
	stopped  sync.Once
}

func (s *ffmpegStream) Chunks() <-chan []byte { return s.chunks }

func (s *ffmpegStream) MIMEType() string { return "audio/wav" }

// Stop посылает ffmpeg SIGINT, дочитывает остаток и дожидается выхода процесса.
// Выход по прерыванию — штатная остановка, не ошибка.
func (s *ffmpegStream) Stop() error {
	s.stopped.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Signal(os.Interrupt)
		}
	})

	select {
	case <-s.exited:
	case <-time.After(10 * time.Second):
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		<-s.exited
	}

	// Канал chunks закрывает pump после EOF на stdout.
	return nil
}

func (s *ffmpegStream) pump(stdout io.Reader) {
	defer close(s.pumpDone)
	defer close(s.chunks)

	buf := make([]byte, 32*1024)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			s.once.Do(func() { close(s.first) })
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.chunks <- chunk
		}
		if err != nil {
			return
		}
	}
}

func classifyFFmpegError(stderr string) error {
	lower := strings.ToLower(stderr)
	if strings.Contains(lower, "operation not permitted") ||
		strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "not authorized") {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, lastLine(stderr))
	}
	return fmt.Errorf("%w: %s", ErrDeviceFailure, lastLine(stderr))
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
