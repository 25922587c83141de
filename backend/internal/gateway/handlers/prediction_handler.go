package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"studentpredict/backend/internal/gateway/util"
	"studentpredict/backend/internal/prediction"
)

// PredictionHandler holds the prediction service for prediction endpoints.
type PredictionHandler struct {
	PredictionService *prediction.Service
	MaxFileBytes      int64
}

// Single handles POST /api/predictions/single. The body is passed through
// to the predictor as the feature bag; `studentId` is peeled off as an
// optional student reference.
func (h *PredictionHandler) Single(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		util.WriteJSONError(w, http.StatusUnauthorized, "Authorization token required")
		return
	}

	var inputFeatures map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&inputFeatures); err != nil || inputFeatures == nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid features payload")
		return
	}

	studentID, _ := inputFeatures["studentId"].(string)
	delete(inputFeatures, "studentId")

	pred, err := h.PredictionService.CreateSingle(r.Context(), user.ID, studentID, inputFeatures)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteSuccess(w, http.StatusOK, pred, "Single prediction created")
}

// UploadBatch handles POST /api/predictions/batch, the multipart upload
// variant kept alongside /api/batches/upload. The batch name falls back to
// the uploaded file name.
func (h *PredictionHandler) UploadBatch(w http.ResponseWriter, r *http.Request) {
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
		batchName = fileName
	}

	result, err := h.PredictionService.UploadBatch(r.Context(), user.ID, batchName, fileName, fileData)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteSuccess(w, http.StatusOK, result, "Batch prediction created")
}

// ListAll handles GET /api/predictions/all
func (h *PredictionHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	preds, err := h.PredictionService.ListAllPredictions(r.Context())
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteSuccess(w, http.StatusOK, preds, "Predictions list")
}

// ListMine handles GET /api/predictions
func (h *PredictionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		util.WriteJSONError(w, http.StatusUnauthorized, "Authorization token required")
		return
	}

	preds, err := h.PredictionService.ListUserPredictions(r.Context(), user.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteSuccess(w, http.StatusOK, preds, "User predictions")
}

// RESTSavePredictionRequest mirrors the body of POST /api/predictions: a
// prediction the client already computed, persisted for the history view.
type RESTSavePredictionRequest struct {
	Attendance           *float64 `json:"attendance"`
	StudyHours           *float64 `json:"studyHours"`
	AssignmentsCompleted *float64 `json:"assignmentsCompleted"`
	InternalMarks        *float64 `json:"internalMarks"`
	Prediction           string   `json:"prediction"`
	RiskScore            float64  `json:"riskScore"`
	RiskLevel            string   `json:"riskLevel"`
}

// Save handles POST /api/predictions
func (h *PredictionHandler) Save(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		util.WriteJSONError(w, http.StatusUnauthorized, "Authorization token required")
		return
	}

	var reqBody RESTSavePredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		if errors.Is(err, io.EOF) {
			util.WriteJSONError(w, http.StatusBadRequest, "Request body is empty")
			return
		}
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if reqBody.Attendance == nil || reqBody.StudyHours == nil || reqBody.AssignmentsCompleted == nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Attendance, study hours, and assignments completed are required")
		return
	}

	pred, err := h.PredictionService.SaveUserPrediction(r.Context(), user.ID, prediction.SaveInput{
		Attendance:           *reqBody.Attendance,
		StudyHours:           *reqBody.StudyHours,
		AssignmentsCompleted: *reqBody.AssignmentsCompleted,
		InternalMarks:        reqBody.InternalMarks,
		Prediction:           reqBody.Prediction,
		RiskLevel:            reqBody.RiskLevel,
		RiskScore:            reqBody.RiskScore,
	})
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteSuccess(w, http.StatusOK, pred, "Prediction saved")
}
