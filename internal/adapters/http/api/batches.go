// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/greenalloc/internal/domain/model"
	"github.com/okian/greenalloc/internal/domain/types"
)

// Form field and header names accepted by POST /batches.
const (
	formDocuments     = "documents"
	formUploadID      = "upload_id"
	headerIdempotency = "Idempotency-Key"
	multipartMemory   = 8 << 20
)

// BatchDependencies defines the batch operations the handler needs.
type BatchDependencies interface {
	SubmitUpload(ctx context.Context, uploadKey string, docs []model.Document) (model.Batch, bool, error)
	Batch(ctx context.Context, id string) (model.Batch, error)
	Allocations(ctx context.Context, batchID string, riskTolerance float64) (types.AllocationSet, error)
	Ranking(ctx context.Context, batchID string, riskTolerance float64) ([]types.RankedProject, error)
}

// BatchHandler handles the /batches routes.
type BatchHandler struct {
	deps           BatchDependencies
	risk           riskPolicy
	maxUploadBytes int64
}

// NewBatchHandler creates a new batch handler.
func NewBatchHandler(deps BatchDependencies, risk riskPolicy, maxUploadBytes int64) *BatchHandler {
	return &BatchHandler{deps: deps, risk: risk, maxUploadBytes: maxUploadBytes}
}

// uploadDocument mirrors the OpenAPI schema for a JSON-encoded document.
// Data is base64 in JSON.
type uploadDocument struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// uploadRequest mirrors the OpenAPI schema for a JSON POST /batches body.
type uploadRequest struct {
	UploadID  string           `json:"upload_id"`
	Documents []uploadDocument `json:"documents"`
}

type uploadResponse struct {
	Batch     model.Batch `json:"batch"`
	Duplicate bool        `json:"duplicate"`
}

type rankingResponse struct {
	BatchID       string                `json:"batch_id"`
	RiskTolerance float64               `json:"risk_tolerance"`
	Projects      []types.RankedProject `json:"projects"`
}

// HandlePostBatch accepts documents as multipart/form-data or JSON.
func (h *BatchHandler) HandlePostBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_batch"

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		uploadID string
		docs     []model.Document
		err      error
	)
	switch mediaType {
	case "multipart/form-data":
		uploadID, docs, err = h.readMultipart(r)
	case "application/json", "":
		uploadID, docs, err = readJSONUpload(r.Body)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedBody, mediaType)
	}
	if err != nil {
		respondError(w, Wrap(op, uploadError(err)))
		return
	}
	if key := strings.TrimSpace(r.Header.Get(headerIdempotency)); uploadID == "" && key != "" {
		uploadID = key
	}
	if len(docs) == 0 {
		respondError(w, WrapKind(op, ErrBadRequest, errors.New("no documents supplied")))
		return
	}

	batch, duplicate, err := h.deps.SubmitUpload(r.Context(), uploadID, docs)
	if err != nil {
		respondError(w, Wrap(op, err))
		return
	}
	status := http.StatusAccepted
	if duplicate {
		status = http.StatusOK
	}
	w.Header().Set("Location", "/batches/"+batch.ID)
	writeJSON(w, status, uploadResponse{Batch: batch, Duplicate: duplicate})
}

func (h *BatchHandler) readMultipart(r *http.Request) (string, []model.Document, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return "", nil, err
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	uploadID := strings.TrimSpace(r.FormValue(formUploadID))
	files := r.MultipartForm.File[formDocuments]
	docs := make([]model.Document, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return "", nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return "", nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		docs = append(docs, model.Document{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return uploadID, docs, nil
}

func readJSONUpload(body io.Reader) (string, []model.Document, error) {
	var req uploadRequest
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return "", nil, err
	}
	docs := make([]model.Document, len(req.Documents))
	for i, d := range req.Documents {
		if strings.TrimSpace(d.Name) == "" {
			return "", nil, fmt.Errorf("%w: document %d has no name", ErrBadRequest, i)
		}
		docs[i] = model.Document{Name: d.Name, ContentType: d.ContentType, Data: d.Data}
	}
	return strings.TrimSpace(req.UploadID), docs, nil
}

// uploadError classifies body read failures.
func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return fmt.Errorf("%w: limit is %d bytes", ErrPayloadTooLarge, tooLarge.Limit)
	case errors.Is(err, ErrUnsupportedBody), errors.Is(err, ErrBadRequest):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
}

// HandleGetBatch returns a batch and its extraction status.
func (h *BatchHandler) HandleGetBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_batch"

	batch, err := h.deps.Batch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

// HandleGetAllocations returns allocations for a ready batch.
func (h *BatchHandler) HandleGetAllocations(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_allocations"

	rt, err := h.risk.fromQuery(r.URL.Query().Get("risk_tolerance"))
	if err != nil {
		respondError(w, Wrap(op, err))
		return
	}
	set, err := h.deps.Allocations(r.Context(), chi.URLParam(r, "id"), rt)
	if err != nil {
		respondError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// HandleGetRanking returns a ready batch's projects ordered by score.
func (h *BatchHandler) HandleGetRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ranking"

	id := chi.URLParam(r, "id")
	rt, err := h.risk.fromQuery(r.URL.Query().Get("risk_tolerance"))
	if err != nil {
		respondError(w, Wrap(op, err))
		return
	}
	ranked, err := h.deps.Ranking(r.Context(), id, rt)
	if err != nil {
		respondError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rankingResponse{BatchID: id, RiskTolerance: rt, Projects: ranked})
}
