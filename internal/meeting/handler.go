package meeting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/Oniqq60/meeting_capture_service/internal/auth"
	"github.com/Oniqq60/meeting_capture_service/internal/blob"
	"github.com/Oniqq60/meeting_capture_service/internal/capture"
	"github.com/Oniqq60/meeting_capture_service/internal/docstore"
	"github.com/Oniqq60/meeting_capture_service/internal/dto"
)

var errUnauthorized = errors.New("unauthorized")

// Authorizer проверяет токен запроса и возвращает идентичность.
type Authorizer interface {
	Authorize(ctx context.Context, token string) (auth.Identity, error)
}

type Handler struct {
	workflow   *Workflow
	docs       docstore.Store
	blobs      blob.Store
	auth       Authorizer
	maxSize    int64
	collection string
}

func NewHandler(workflow *Workflow, docs docstore.Store, blobs blob.Store, authorizer Authorizer, maxSize int64, collection string) *Handler {
	return &Handler{
		workflow:   workflow,
		docs:       docs,
		blobs:      blobs,
		auth:       authorizer,
		maxSize:    maxSize,
		collection: collection,
	}
}

// Upload принимает multipart-форму с полем file и необязательным kind
// (audio|file, по умолчанию file) и прогоняет артефакт через workflow.
// С заголовком Accept: text/event-stream прогресс отдается потоком SSE.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	identity, err := h.ensureAuthorized(r)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	if err := r.ParseMultipartForm(h.maxSize); err != nil {
		http.Error(w, "failed to parse multipart form", http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(content)) > h.maxSize {
		http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
		return
	}

	contentType := r.FormValue("content_type")
	if contentType == "" {
		contentType = fileHeader.Header.Get("Content-Type")
	}
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}

	var artifact *capture.Artifact
	switch r.FormValue("kind") {
	case "audio":
		artifact = capture.NewAudioArtifact(content, contentType, time.Now())
	case "file", "":
		artifact, err = capture.NewFileArtifact(fileHeader.Filename, contentType, content)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	default:
		http.Error(w, "kind must be audio or file", http.StatusBadRequest)
		return
	}

	owner := Owner{ID: identity.UserID, Label: identity.Email}

	if wantsEventStream(r) {
		h.uploadSSE(w, r, artifact, owner)
		return
	}

	id, err := h.workflow.Run(r.Context(), artifact, owner, nil)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.UploadResponse{
		ID:       id,
		Kind:     string(artifact.Kind),
		FileName: artifact.SuggestedName,
		FilePath: StoragePath(owner.ID, artifact),
		Size:     artifact.SizeBytes,
		Progress: 100,
	})
}

func (h *Handler) uploadSSE(w http.ResponseWriter, r *http.Request, artifact *capture.Artifact, owner Owner) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	onProgress := func(p blob.Progress) {
		writeSSE(w, "progress", dto.ProgressEvent{
			Transferred: p.Transferred,
			Total:       p.Total,
			Percent:     p.Percent(),
		})
		flusher.Flush()
	}

	id, err := h.workflow.Run(r.Context(), artifact, owner, onProgress)
	if err != nil {
		writeSSE(w, "error", map[string]string{"error": err.Error()})
		flusher.Flush()
		return
	}

	writeSSE(w, "result", dto.UploadResponse{
		ID:       id,
		Kind:     string(artifact.Kind),
		FileName: artifact.SuggestedName,
		FilePath: StoragePath(owner.ID, artifact),
		Size:     artifact.SizeBytes,
		Progress: 100,
	})
	flusher.Flush()
}

func (h *Handler) GetMeeting(w http.ResponseWriter, r *http.Request) {
	identity, err := h.ensureAuthorized(r)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/meetings/")
	if id == "" {
		http.Error(w, "meeting id required", http.StatusBadRequest)
		return
	}

	doc, err := h.docs.Get(r.Context(), h.collection, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if ownerOf(doc) != identity.UserID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	identity, err := h.ensureAuthorized(r)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	ownerID := strings.TrimPrefix(r.URL.Path, "/meetings/owner/")
	if ownerID == "" {
		http.Error(w, "owner id required", http.StatusBadRequest)
		return
	}
	if ownerID != identity.UserID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	docs, err := h.docs.Query(r.Context(), h.collection, docstore.Query{
		Filters: []docstore.Filter{{Field: "owner_id", Op: "==", Value: ownerID}},
		OrderBy: "created_at",
		Desc:    true,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if docs == nil {
		docs = []bson.M{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// DeleteMeeting удаляет запись, блоб удаляется асинхронно после нее.
func (h *Handler) DeleteMeeting(w http.ResponseWriter, r *http.Request) {
	identity, err := h.ensureAuthorized(r)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/meetings/")
	if id == "" {
		http.Error(w, "meeting id required", http.StatusBadRequest)
		return
	}

	doc, err := h.docs.Get(r.Context(), h.collection, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if ownerOf(doc) != identity.UserID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if err := h.docs.Delete(r.Context(), h.collection, id); err != nil {
		writeStoreError(w, err)
		return
	}

	if path, ok := doc["file_path"].(string); ok && path != "" {
		go func(path string) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := h.blobs.Delete(ctx, path); err != nil {
				log.Printf("blob delete failed for %s: %v", path, err)
			}
		}(path)
	}

	w.WriteHeader(http.StatusNoContent)
}

// Watch отдает изменения коллекции потоком SSE.
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	identity, err := h.ensureAuthorized(r)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	changes, err := h.docs.Subscribe(r.Context(), h.collection)
	if err != nil {
		http.Error(w, "subscribe failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// У delete-событий нет документа, поэтому владельца по ним не определить.
	// Держим множество id своих записей: стартовое состояние из запроса,
	// дальше пополняется из insert/update событий.
	owned := make(map[string]struct{})
	existing, err := h.docs.Query(r.Context(), h.collection, docstore.Query{
		Filters: []docstore.Filter{{Field: "owner_id", Op: "==", Value: identity.UserID}},
	})
	if err != nil {
		http.Error(w, "query failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	for _, doc := range existing {
		if id, ok := doc["id"].(string); ok {
			owned[id] = struct{}{}
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for change := range changes {
		if change.Doc != nil {
			if ownerOf(change.Doc) != identity.UserID {
				continue
			}
			owned[change.ID] = struct{}{}
		} else {
			if _, ok := owned[change.ID]; !ok {
				continue
			}
			delete(owned, change.ID)
		}
		writeSSE(w, change.Operation, change)
		flusher.Flush()
	}
}

// ListFiles перечисляет объекты владельца в блоб-хранилище.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	identity, err := h.ensureAuthorized(r)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	prefix := fmt.Sprintf("users/%s/", identity.UserID)
	infos, err := h.blobs.List(r.Context(), prefix)
	if err != nil {
		http.Error(w, "list failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if infos == nil {
		infos = []blob.ObjectInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/meetings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.Upload(w, r)
	})
	mux.HandleFunc("/meetings/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/meetings/watch":
			if r.Method != http.MethodGet {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			h.Watch(w, r)
		case strings.HasPrefix(r.URL.Path, "/meetings/owner/"):
			if r.Method != http.MethodGet {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			h.ListByOwner(w, r)
		default:
			switch r.Method {
			case http.MethodGet:
				h.GetMeeting(w, r)
			case http.MethodDelete:
				h.DeleteMeeting(w, r)
			default:
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			}
		}
	})
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ListFiles(w, r)
	})
	return mux
}

func (h *Handler) ensureAuthorized(r *http.Request) (auth.Identity, error) {
	token, err := auth.TokenFromRequest(r)
	if err != nil {
		return auth.Identity{}, errUnauthorized
	}

	identity, err := h.auth.Authorize(r.Context(), token)
	if err != nil {
		return auth.Identity{}, errUnauthorized
	}
	return identity, nil
}

func ownerOf(doc map[string]interface{}) string {
	owner, _ := doc["owner_id"].(string)
	return owner
}

func wantsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

func writeAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, errUnauthorized) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, docstore.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, docstore.ErrInvalidID) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeWorkflowError(w http.ResponseWriter, err error) {
	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		http.Error(w, wfErr.Error(), http.StatusBadGateway)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSSE(w io.Writer, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
