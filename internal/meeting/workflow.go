package meeting

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Oniqq60/meeting_capture_service/internal/blob"
	"github.com/Oniqq60/meeting_capture_service/internal/capture"
	"github.com/Oniqq60/meeting_capture_service/internal/docstore"
)

type Stage string

const (
	StageUpload Stage = "upload"
	StageCommit Stage = "commit"
)

// WorkflowError — терминальная ошибка одного запуска workflow. Текст причины
// сохраняется как есть.
type WorkflowError struct {
	Stage Stage
	Err   error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Stage, e.Err.Error())
}

func (e *WorkflowError) Unwrap() error { return e.Err }

// ProgressFunc получает события прогресса на том же логическом потоке, что и
// загрузка; обработчик не должен блокироваться надолго.
type ProgressFunc func(p blob.Progress)

// Workflow загружает захваченный артефакт в блоб-хранилище и затем фиксирует
// метаданные. Метаданные никогда не пишутся раньше подтвержденной загрузки.
type Workflow struct {
	blobs      blob.Store
	docs       docstore.Store
	events     EventProducer
	collection string
}

func NewWorkflow(blobs blob.Store, docs docstore.Store, collection string) *Workflow {
	return &Workflow{
		blobs:      blobs,
		docs:       docs,
		collection: collection,
	}
}

// WithEvents включает публикацию события о зафиксированной встрече.
// Публикация — best effort, на исход запуска не влияет.
func (w *Workflow) WithEvents(events EventProducer) *Workflow {
	w.events = events
	return w
}

// Run выполняет одну загрузку с фиксацией метаданных и возвращает id созданной
// записи. На каждый вызов ровно один терминальный исход: id, ошибка стадии
// upload или ошибка стадии commit. Блоб, загруженный до неудачного commit,
// не удаляется.
func (w *Workflow) Run(ctx context.Context, artifact *capture.Artifact, owner Owner, onProgress ProgressFunc) (string, error) {
	if artifact == nil || len(artifact.Payload) == 0 {
		panic("meeting: Run called without artifact")
	}
	if owner.ID == "" {
		panic("meeting: Run called without owner id")
	}

	path := StoragePath(owner.ID, artifact)
	contentType := artifact.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var result *blob.UploadResult
	for ev := range w.blobs.UploadWithProgress(ctx, path, contentType, artifact.Payload) {
		switch {
		case ev.Progress != nil:
			if onProgress != nil {
				onProgress(*ev.Progress)
			}
		case ev.Err != nil:
			return "", &WorkflowError{Stage: StageUpload, Err: ev.Err}
		case ev.Result != nil:
			result = ev.Result
		}
	}
	if result == nil {
		// Поток закрылся без терминального события: загрузка оборвана контекстом.
		err := ctx.Err()
		if err == nil {
			err = errors.New("upload stream ended without result")
		}
		return "", &WorkflowError{Stage: StageUpload, Err: err}
	}

	record, err := newRecordFor(artifact, owner, *result)
	if err != nil {
		return "", &WorkflowError{Stage: StageCommit, Err: err}
	}

	id, err := w.docs.Create(ctx, w.collection, record)
	if err != nil {
		return "", &WorkflowError{Stage: StageCommit, Err: err}
	}

	if w.events != nil {
		event := MeetingEvent{
			MeetingID: id,
			OwnerID:   owner.ID,
			Kind:      string(artifact.Kind),
			FileName:  artifact.SuggestedName,
			SizeBytes: artifact.SizeBytes,
			Timestamp: time.Now(),
		}
		if err := w.events.SendMeetingCommitted(ctx, event); err != nil {
			log.Printf("meeting event publish failed: %v", err)
		}
	}

	return id, nil
}

func newRecordFor(artifact *capture.Artifact, owner Owner, res blob.UploadResult) (Record, error) {
	if artifact.Kind == capture.KindAudio {
		return NewAudioRecord(owner, artifact.SuggestedName, res, artifact.SizeBytes)
	}
	return NewFileRecord(owner, artifact.SuggestedName, artifact.MIMEType, res, artifact.SizeBytes)
}

// StoragePath детерминированно строит путь объекта. Для аудио имя уже содержит
// метку времени, для файлов используется исходное имя — повторная загрузка
// того же имени перезаписывает прежний объект.
func StoragePath(ownerID string, artifact *capture.Artifact) string {
	if artifact.Kind == capture.KindAudio {
		return fmt.Sprintf("users/%s/recordings/%s", ownerID, artifact.SuggestedName)
	}
	return fmt.Sprintf("users/%s/uploads/%s", ownerID, artifact.SuggestedName)
}
