package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"studentpredict/backend/internal/gateway/util"
	"studentpredict/backend/internal/prediction"
)

// BatchHandler holds the prediction service for batch endpoints.
type BatchHandler struct {
	PredictionService *prediction.Service
	MaxFileBytes      int64
}

// Upload handles POST /api/batches/upload (multipart: `file` + `name`).
// The whole pipeline runs within this request; the response carries the
// batch summary with derived counts.
func (h *BatchHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		util.WriteJSONError(w, http.StatusUnauthorized, "Authorization token required")
		return
	}

	fileData, fileName, err := readUploadedFile(r, h.MaxFileBytes)
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	batchName := r.FormValue("name")
	if batchName == "" {
		batchName = r.FormValue("batchName")
	}
	if batchName == "" {
		batchName = fmt.Sprintf("Batch %s", time.Now().Format("1/2/2006"))
	}

	result, err := h.PredictionService.UploadBatch(r.Context(), user.ID, batchName, fileName, fileData)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteSuccess(w, http.StatusOK, result, "Batch uploaded and processed successfully")
}

// List handles GET /api/batches
func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		util.WriteJSONError(w, http.StatusUnauthorized, "Authorization token required")
		return
	}

	batches, err := h.PredictionService.ListBatches(r.Context(), user.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteSuccess(w, http.StatusOK, batches, "Batches list")
}

// Details handles GET /api/batches/{id}
func (h *BatchHandler) Details(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "id")

	details, err := h.PredictionService.GetBatchDetails(r.Context(), batchID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteSuccess(w, http.StatusOK, details, "Batch details")
}

// Delete handles DELETE /api/batches/{id}
func (h *BatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		util.WriteJSONError(w, http.StatusUnauthorized, "Authorization token required")
		return
	}

	batchID := chi.URLParam(r, "id")

	if err := h.PredictionService.DeleteBatch(r.Context(), batchID, user.ID, user.Role); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteSuccess(w, http.StatusOK, map[string]interface{}{"id": batchID}, "Batch deleted successfully")
}

// readUploadedFile extracts the `file` part of a multipart upload, fully
// into memory (the normalizer needs a restartable byte slice anyway).
func readUploadedFile(r *http.Request, maxBytes int64) ([]byte, string, error) {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, "", fmt.Errorf("No file uploaded")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("No file uploaded")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("Failed to read uploaded file")
	}
	if int64(len(data)) > maxBytes {
		return nil, "", fmt.Errorf("Uploaded file exceeds the %dMB limit", maxBytes/(1024*1024))
	}

	return data, header.Filename, nil
}
