package meeting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/Oniqq60/meeting_capture_service/internal/blob"
	"github.com/Oniqq60/meeting_capture_service/internal/capture"
	"github.com/Oniqq60/meeting_capture_service/internal/docstore"
)

// fakeBlobStore проигрывает заранее заданный сценарий загрузки.
type fakeBlobStore struct {
	progress []blob.Progress
	result   *blob.UploadResult
	err      error

	uploads    int
	deletes    int
	lastPath   string
	lastType   string
	lastLength int
}

func (s *fakeBlobStore) UploadWithProgress(ctx context.Context, path, contentType string, data []byte) <-chan blob.UploadEvent {
	s.uploads++
	s.lastPath = path
	s.lastType = contentType
	s.lastLength = len(data)

	events := make(chan blob.UploadEvent, len(s.progress)+1)
	for i := range s.progress {
		p := s.progress[i]
		events <- blob.UploadEvent{Progress: &p}
	}
	if s.err != nil {
		events <- blob.UploadEvent{Err: s.err}
	} else if s.result != nil {
		events <- blob.UploadEvent{Result: s.result}
	}
	close(events)
	return events
}

func (s *fakeBlobStore) Delete(ctx context.Context, path string) error {
	s.deletes++
	return nil
}

func (s *fakeBlobStore) DownloadURL(ctx context.Context, path string) (string, error) {
	return "https://blob/" + path, nil
}

func (s *fakeBlobStore) List(ctx context.Context, prefix string) ([]blob.ObjectInfo, error) {
	return nil, nil
}

func (s *fakeBlobStore) Metadata(ctx context.Context, path string) (blob.ObjectInfo, error) {
	return blob.ObjectInfo{}, nil
}

// fakeDocStore перехватывает Create и считает обращения; Query и Subscribe
// отдают заранее заданные данные.
type fakeDocStore struct {
	createID  string
	createErr error
	queryDocs []bson.M
	changes   chan docstore.Change

	creates        int
	lastCollection string
	lastRecord     Record
}

func (s *fakeDocStore) Create(ctx context.Context, collection string, doc interface{}) (string, error) {
	s.creates++
	s.lastCollection = collection
	if rec, ok := doc.(Record); ok {
		s.lastRecord = rec
	}
	if s.createErr != nil {
		return "", s.createErr
	}
	return s.createID, nil
}

func (s *fakeDocStore) Get(ctx context.Context, collection, id string) (bson.M, error) {
	return nil, docstore.ErrNotFound
}

func (s *fakeDocStore) List(ctx context.Context, collection string) ([]bson.M, error) {
	return nil, nil
}

func (s *fakeDocStore) Query(ctx context.Context, collection string, q docstore.Query) ([]bson.M, error) {
	return s.queryDocs, nil
}

func (s *fakeDocStore) Update(ctx context.Context, collection, id string, fields bson.M) error {
	return nil
}

func (s *fakeDocStore) Delete(ctx context.Context, collection, id string) error {
	return nil
}

func (s *fakeDocStore) Subscribe(ctx context.Context, collection string) (<-chan docstore.Change, error) {
	if s.changes == nil {
		return nil, errors.New("not supported")
	}
	return s.changes, nil
}

func audioArtifact(t *testing.T) *capture.Artifact {
	t.Helper()
	return capture.NewAudioArtifact([]byte("RIFFdata"), "audio/wav", time.Now())
}

func TestRunAudioSuccess(t *testing.T) {
	blobs := &fakeBlobStore{
		progress: []blob.Progress{{Transferred: 4, Total: 8}, {Transferred: 8, Total: 8}},
		result:   &blob.UploadResult{DownloadURL: "https://x/a.webm", StoredPath: "users/u1/recordings/a.webm"},
	}
	docs := &fakeDocStore{createID: "doc1"}
	workflow := NewWorkflow(blobs, docs, "meetings")

	artifact := audioArtifact(t)
	owner := Owner{ID: "u1", Label: "u1@example.com"}

	id, err := workflow.Run(context.Background(), artifact, owner, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if id != "doc1" {
		t.Fatalf("id = %q, want doc1", id)
	}

	if docs.lastCollection != "meetings" {
		t.Fatalf("collection = %q", docs.lastCollection)
	}
	rec := docs.lastRecord
	if rec.Kind != "audio" {
		t.Fatalf("kind = %q, want audio", rec.Kind)
	}
	if rec.FileURL != "https://x/a.webm" {
		t.Fatalf("file url = %q", rec.FileURL)
	}
	if rec.FilePath != "users/u1/recordings/a.webm" {
		t.Fatalf("file path = %q", rec.FilePath)
	}
	if rec.OwnerID != "u1" || rec.CreatedBy != "u1@example.com" {
		t.Fatalf("owner fields = %q/%q", rec.OwnerID, rec.CreatedBy)
	}
	if rec.SizeBytes != artifact.SizeBytes {
		t.Fatalf("size = %d, want %d", rec.SizeBytes, artifact.SizeBytes)
	}
	if !rec.CreatedAt.IsZero() || !rec.UpdatedAt.IsZero() {
		t.Fatal("workflow must not assign timestamps, the store does")
	}

	if !strings.HasPrefix(blobs.lastPath, "users/u1/recordings/audio_") {
		t.Fatalf("storage path = %q", blobs.lastPath)
	}
}

func TestRunFileSuccessSetsFileType(t *testing.T) {
	blobs := &fakeBlobStore{
		result: &blob.UploadResult{DownloadURL: "https://x/n.pdf", StoredPath: "users/u1/uploads/n.pdf"},
	}
	docs := &fakeDocStore{createID: "doc2"}
	workflow := NewWorkflow(blobs, docs, "meetings")

	artifact, err := capture.NewFileArtifact("n.pdf", "application/pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("NewFileArtifact: %v", err)
	}

	if _, err := workflow.Run(context.Background(), artifact, Owner{ID: "u1"}, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rec := docs.lastRecord
	if rec.Kind != "file" || rec.FileType != "application/pdf" {
		t.Fatalf("record = %+v", rec)
	}
	if rec.CreatedBy != "u1" {
		t.Fatalf("created_by = %q, want owner id fallback", rec.CreatedBy)
	}
	if blobs.lastPath != "users/u1/uploads/n.pdf" {
		t.Fatalf("storage path = %q", blobs.lastPath)
	}
}

func TestRunUploadFailureSkipsCommit(t *testing.T) {
	blobs := &fakeBlobStore{err: errors.New("network down")}
	docs := &fakeDocStore{createID: "doc1"}
	workflow := NewWorkflow(blobs, docs, "meetings")

	_, err := workflow.Run(context.Background(), audioArtifact(t), Owner{ID: "u1"}, nil)

	var wfErr *WorkflowError
	if !errors.As(err, &wfErr) || wfErr.Stage != StageUpload {
		t.Fatalf("error = %v, want upload-stage WorkflowError", err)
	}
	if !strings.Contains(err.Error(), "network down") {
		t.Fatalf("cause text lost: %v", err)
	}
	if docs.creates != 0 {
		t.Fatalf("commit attempted after failed upload (%d creates)", docs.creates)
	}
}

func TestRunCommitFailureLeavesBlob(t *testing.T) {
	blobs := &fakeBlobStore{
		result: &blob.UploadResult{DownloadURL: "https://x/a", StoredPath: "users/u1/recordings/a"},
	}
	docs := &fakeDocStore{createErr: errors.New("mongo unavailable")}
	workflow := NewWorkflow(blobs, docs, "meetings")

	_, err := workflow.Run(context.Background(), audioArtifact(t), Owner{ID: "u1"}, nil)

	var wfErr *WorkflowError
	if !errors.As(err, &wfErr) || wfErr.Stage != StageCommit {
		t.Fatalf("error = %v, want commit-stage WorkflowError", err)
	}
	// Откат блоба не выполняется
	if blobs.deletes != 0 {
		t.Fatalf("blob rollback attempted (%d deletes)", blobs.deletes)
	}
}

func TestRunProgressMonotonicAndBounded(t *testing.T) {
	blobs := &fakeBlobStore{
		progress: []blob.Progress{
			{Transferred: 0, Total: 100},
			{Transferred: 25, Total: 100},
			{Transferred: 50, Total: 100},
			{Transferred: 100, Total: 100},
		},
		result: &blob.UploadResult{DownloadURL: "https://x/a", StoredPath: "p"},
	}
	docs := &fakeDocStore{createID: "doc1"}
	workflow := NewWorkflow(blobs, docs, "meetings")

	var percents []float64
	onProgress := func(p blob.Progress) {
		percents = append(percents, p.Percent())
	}

	if _, err := workflow.Run(context.Background(), audioArtifact(t), Owner{ID: "u1"}, onProgress); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(percents) != 4 {
		t.Fatalf("got %d progress events, want 4", len(percents))
	}
	prev := -1.0
	for i, pct := range percents {
		if pct < 0 || pct > 100 {
			t.Fatalf("percent[%d] = %f out of [0,100]", i, pct)
		}
		if pct < prev {
			t.Fatalf("percent[%d] = %f decreased from %f", i, pct, prev)
		}
		prev = pct
	}
}

func TestRunPreconditionsArePanics(t *testing.T) {
	workflow := NewWorkflow(&fakeBlobStore{}, &fakeDocStore{}, "meetings")

	assertPanics := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Fatalf("%s: expected panic", name)
			}
		}()
		fn()
	}

	assertPanics("nil artifact", func() {
		_, _ = workflow.Run(context.Background(), nil, Owner{ID: "u1"}, nil)
	})
	assertPanics("empty owner", func() {
		_, _ = workflow.Run(context.Background(), audioArtifact(t), Owner{}, nil)
	})
}

func TestStoragePath(t *testing.T) {
	file, err := capture.NewFileArtifact("report.pdf", "application/pdf", []byte("x"))
	if err != nil {
		t.Fatalf("NewFileArtifact: %v", err)
	}
	if got := StoragePath("u1", file); got != "users/u1/uploads/report.pdf" {
		t.Fatalf("file path = %q", got)
	}

	audio := capture.NewAudioArtifact([]byte("x"), "audio/wav", time.Now())
	got := StoragePath("u1", audio)
	if !strings.HasPrefix(got, "users/u1/recordings/audio_") || !strings.HasSuffix(got, ".wav") {
		t.Fatalf("audio path = %q", got)
	}
}
