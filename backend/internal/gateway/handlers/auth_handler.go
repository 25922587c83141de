package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"studentpredict/backend/internal/auth"
	"studentpredict/backend/internal/gateway/util"
)

var validate = validator.New()

// AuthHandler holds the auth service for registration/login endpoints.
type AuthHandler struct {
	AuthService *auth.Service
}

// RESTRegisterRequest mirrors the expected JSON input for /auth/register.
// Both `name` and `fullName` are accepted for compatibility with older
// frontend builds.
type RESTRegisterRequest struct {
	Name     string `json:"name"`
	FullName string `json:"fullName"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"`
}

// RESTLoginRequest mirrors the expected JSON input for /auth/login
type RESTLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var reqBody RESTRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		if errors.Is(err, io.EOF) {
			util.WriteJSONError(w, http.StatusBadRequest, "Request body is empty")
			return
		}
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	name := reqBody.Name
	if name == "" {
		name = reqBody.FullName
	}
	if name == "" || reqBody.Email == "" || reqBody.Password == "" {
		util.WriteJSONError(w, http.StatusBadRequest, "Name, email, and password are required")
		return
	}
	if err := validate.Struct(reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid email address")
		return
	}

	user, token, err := h.AuthService.Register(r.Context(), name, reqBody.Email, reqBody.Password, reqBody.Role)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	}, "Registered")
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var reqBody RESTLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		if errors.Is(err, io.EOF) {
			util.WriteJSONError(w, http.StatusBadRequest, "Request body is empty")
			return
		}
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if reqBody.Email == "" || reqBody.Password == "" {
		util.WriteJSONError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, token, err := h.AuthService.Login(r.Context(), reqBody.Email, reqBody.Password, reqBody.Role)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	}, "Logged in")
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		util.WriteJSONError(w, http.StatusUnauthorized, "Authorization token required")
		return
	}

	util.WriteSuccess(w, http.StatusOK, map[string]interface{}{"user": user}, "Me")
}
