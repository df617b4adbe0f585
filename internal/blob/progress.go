package blob

import (
	"context"
	"io"
)

const progressBuffer = 16

// Progress — доля переданных байт для одной загрузки.
type Progress struct {
	Transferred int64
	Total       int64
}

// Percent возвращает прогресс в диапазоне [0,100].
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 100
	}
	pct := float64(p.Transferred) / float64(p.Total) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// UploadEvent — одно событие потока загрузки. Заполнено ровно одно из полей:
// Progress для промежуточного события, Result или Err для терминального.
type UploadEvent struct {
	Progress *Progress
	Result   *UploadResult
	Err      error
}

// Terminal сообщает, завершает ли событие поток.
func (e UploadEvent) Terminal() bool {
	return e.Progress == nil
}

type progressReader struct {
	ctx         context.Context
	inner       io.Reader
	transferred int64
	total       int64
	events      chan<- UploadEvent
}

func newProgressReader(ctx context.Context, inner io.Reader, total int64, events chan<- UploadEvent) *progressReader {
	return &progressReader{
		ctx:    ctx,
		inner:  inner,
		total:  total,
		events: events,
	}
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	if n > 0 {
		r.transferred += int64(n)
		sendEvent(r.ctx, r.events, UploadEvent{Progress: &Progress{
			Transferred: r.transferred,
			Total:       r.total,
		}})
	}
	return n, err
}

func sendEvent(ctx context.Context, events chan<- UploadEvent, ev UploadEvent) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
