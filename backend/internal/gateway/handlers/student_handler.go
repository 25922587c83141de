package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"studentpredict/backend/internal/gateway/util"
	"studentpredict/backend/internal/student"
)

// StudentHandler holds the student service for roster endpoints.
type StudentHandler struct {
	StudentService *student.Service
}

// RESTCreateStudentRequest mirrors the expected JSON input for POST /api/students
type RESTCreateStudentRequest struct {
	User       string                 `json:"user"`
	RollNumber string                 `json:"rollNumber" validate:"required"`
	Department string                 `json:"department"`
	Year       int32                  `json:"year"`
	ExtraInfo  map[string]interface{} `json:"extraInfo"`
}

// Create handles POST /api/students
func (h *StudentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var reqBody RESTCreateStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		if errors.Is(err, io.EOF) {
			util.WriteJSONError(w, http.StatusBadRequest, "Request body is empty")
			return
		}
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := validate.Struct(reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Roll number is required")
		return
	}

	record, err := h.StudentService.Create(r.Context(), reqBody.User, reqBody.RollNumber, reqBody.Department, reqBody.Year, reqBody.ExtraInfo)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteSuccess(w, http.StatusOK, record, "Student created")
}

// List handles GET /api/students
func (h *StudentHandler) List(w http.ResponseWriter, r *http.Request) {
	students, err := h.StudentService.List(r.Context())
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteSuccess(w, http.StatusOK, students, "Students list")
}
