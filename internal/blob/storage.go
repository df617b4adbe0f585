package blob

import (
	"bytes"
	"context"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectInfo описывает объект в хранилище.
type ObjectInfo struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	DownloadURL string    `json:"download_url,omitempty"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}

// UploadResult — итог успешной загрузки объекта.
type UploadResult struct {
	DownloadURL string
	StoredPath  string
}

type Store interface {
	UploadWithProgress(ctx context.Context, path string, contentType string, data []byte) <-chan UploadEvent
	Delete(ctx context.Context, path string) error
	DownloadURL(ctx context.Context, path string) (string, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Metadata(ctx context.Context, path string) (ObjectInfo, error)
}

type minioStore struct {
	client     *minio.Client
	bucketName string
	urlExpiry  time.Duration
}

func NewMinioStore(endpoint, accessKey, secretKey string, useSSL bool, bucket string) (Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, errBucket := client.BucketExists(ctx, bucket)
	if errBucket != nil {
		return nil, errBucket
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &minioStore{
		client:     client,
		bucketName: bucket,
		urlExpiry:  7 * 24 * time.Hour,
	}, nil
}

// UploadWithProgress загружает объект и возвращает поток событий: ноль или больше
// событий прогресса, затем ровно одно терминальное событие (результат или ошибка),
// после чего канал закрывается.
func (s *minioStore) UploadWithProgress(ctx context.Context, path string, contentType string, data []byte) <-chan UploadEvent {
	events := make(chan UploadEvent, progressBuffer)

	go func() {
		defer close(events)

		total := int64(len(data))
		reader := newProgressReader(ctx, bytes.NewReader(data), total, events)

		_, err := s.client.PutObject(ctx, s.bucketName, path, reader, total, minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			sendEvent(ctx, events, UploadEvent{Err: err})
			return
		}

		downloadURL, err := s.DownloadURL(ctx, path)
		if err != nil {
			sendEvent(ctx, events, UploadEvent{Err: err})
			return
		}

		sendEvent(ctx, events, UploadEvent{Result: &UploadResult{
			DownloadURL: downloadURL,
			StoredPath:  path,
		}})
	}()

	return events
}

func (s *minioStore) Delete(ctx context.Context, path string) error {
	return s.client.RemoveObject(ctx, s.bucketName, path, minio.RemoveObjectOptions{})
}

func (s *minioStore) DownloadURL(ctx context.Context, path string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, path, s.urlExpiry, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (s *minioStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo

	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}

		info, err := s.Metadata(ctx, obj.Key)
		if err != nil {
			return nil, err
		}

		downloadURL, err := s.DownloadURL(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		info.DownloadURL = downloadURL

		infos = append(infos, info)
	}

	return infos, nil
}

func (s *minioStore) Metadata(ctx context.Context, path string) (ObjectInfo, error) {
	stat, err := s.client.StatObject(ctx, s.bucketName, path, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, err
	}

	return ObjectInfo{
		Name:        baseName(path),
		Path:        path,
		Size:        stat.Size,
		ContentType: stat.ContentType,
		Created:     stat.LastModified,
		Updated:     stat.LastModified,
	}, nil
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
