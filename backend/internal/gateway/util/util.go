package util

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"studentpredict/backend/internal/mlclient"
	"studentpredict/backend/internal/shared"
)

// JSONResponse structure for successful responses
type JSONResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSONError structure for error responses
type JSONError struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WriteSuccess writes the standard success envelope
func WriteSuccess(w http.ResponseWriter, status int, data interface{}, message string) {
	if message == "" {
		message = "OK"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := JSONResponse{Success: true, Message: message, Data: data}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

// WriteJSONError is a helper to write standardized error JSON responses
func WriteJSONError(w http.ResponseWriter, status int, message string) {
	log.Printf("HTTP Error %d: %s", status, message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errorResponse := JSONError{
		Success: false,
		Message: message,
	}

	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Printf("Error writing JSON error response: %v", err)
	}
}

// HandleServiceError translates coded service errors to HTTP responses.
// This is the single place error codes turn into statuses.
func HandleServiceError(w http.ResponseWriter, err error) {
	// Upstream predictor failures surface as 500 with the underlying message
	var upstream *mlclient.UpstreamError
	if errors.As(err, &upstream) {
		WriteJSONError(w, http.StatusInternalServerError, upstream.Error())
		return
	}

	message := shared.MessageOf(err)

	switch shared.CodeOf(err) {
	case shared.CodeInvalidArgument:
		WriteJSONError(w, http.StatusBadRequest, message)
	case shared.CodeUnauthenticated:
		WriteJSONError(w, http.StatusUnauthorized, message)
	case shared.CodePermissionDenied:
		WriteJSONError(w, http.StatusForbidden, message)
	case shared.CodeNotFound:
		WriteJSONError(w, http.StatusNotFound, message)
	case shared.CodeAlreadyExists:
		WriteJSONError(w, http.StatusConflict, message)
	case shared.CodeUnavailable:
		WriteJSONError(w, http.StatusServiceUnavailable, message)
	case shared.CodeDeadlineExceeded:
		WriteJSONError(w, http.StatusGatewayTimeout, message)
	default:
		WriteJSONError(w, http.StatusInternalServerError, message)
	}
}

// ExtractToken extracts the token from the Authorization header (Bearer <token>)
func ExtractToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header missing")
	}

	// Expect header: "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errors.New("invalid authorization header format")
	}

	return parts[1], nil
}
