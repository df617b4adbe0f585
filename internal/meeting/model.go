package meeting

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Oniqq60/meeting_capture_service/internal/blob"
)

// Owner — идентичность, от имени которой выполняется загрузка. Передается
// явно, а не читается из глобального состояния.
type Owner struct {
	ID    string // user id, обязателен
	Label string // email, если есть; иначе пусто
}

// CreatedBy возвращает email владельца, либо его id.
func (o Owner) CreatedBy() string {
	if o.Label != "" {
		return o.Label
	}
	return o.ID
}

// Record — метаданные одной встречи в документном хранилище. Создается ровно
// один раз после успешной загрузки блоба; created_at/updated_at назначает
// хранилище, не workflow.
type Record struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID         string             `bson:"owner_id" json:"owner_id"`
	Kind            string             `bson:"kind" json:"kind"` // "audio" | "file"
	FileName        string             `bson:"file_name" json:"file_name"`
	FileURL         string             `bson:"file_url" json:"file_url"`
	FilePath        string             `bson:"file_path" json:"file_path"`
	CreatedBy       string             `bson:"created_by" json:"created_by"`
	SizeBytes       int64              `bson:"size_bytes" json:"size_bytes"`
	FileType        string             `bson:"file_type,omitempty" json:"file_type,omitempty"`
	DurationSeconds *float64           `bson:"duration_seconds,omitempty" json:"duration_seconds,omitempty"`
	CreatedAt       time.Time          `bson:"created_at,omitempty" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at,omitempty" json:"updated_at"`
}

var (
	ErrEmptyOwner        = errors.New("owner id required")
	ErrEmptyFileName     = errors.New("file name required")
	ErrEmptyUploadResult = errors.New("upload result required")
	ErrNegativeSize      = errors.New("size must be non-negative")
)

// NewAudioRecord создает запись для аудиозаписи встречи.
func NewAudioRecord(owner Owner, fileName string, res blob.UploadResult, sizeBytes int64) (Record, error) {
	if err := validateRecordInput(owner, fileName, res, sizeBytes); err != nil {
		return Record{}, err
	}
	return Record{
		OwnerID:   owner.ID,
		Kind:      "audio",
		FileName:  fileName,
		FileURL:   res.DownloadURL,
		FilePath:  res.StoredPath,
		CreatedBy: owner.CreatedBy(),
		SizeBytes: sizeBytes,
	}, nil
}

// NewFileRecord создает запись для загруженного файла. fileType — MIME тип
// исходного файла, может быть пустым.
func NewFileRecord(owner Owner, fileName, fileType string, res blob.UploadResult, sizeBytes int64) (Record, error) {
	if err := validateRecordInput(owner, fileName, res, sizeBytes); err != nil {
		return Record{}, err
	}
	return Record{
		OwnerID:   owner.ID,
		Kind:      "file",
		FileName:  fileName,
		FileURL:   res.DownloadURL,
		FilePath:  res.StoredPath,
		CreatedBy: owner.CreatedBy(),
		SizeBytes: sizeBytes,
		FileType:  fileType,
	}, nil
}

func validateRecordInput(owner Owner, fileName string, res blob.UploadResult, sizeBytes int64) error {
	if owner.ID == "" {
		return ErrEmptyOwner
	}
	if fileName == "" {
		return ErrEmptyFileName
	}
	if res.DownloadURL == "" || res.StoredPath == "" {
		return ErrEmptyUploadResult
	}
	if sizeBytes < 0 {
		return ErrNegativeSize
	}
	return nil
}
