package iam

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Silviu2326/Dentaflow-sub002/pkg/interfaces"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/logger"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/types"
)

// Handler exposes the IAM service over HTTP
type Handler struct {
	service interfaces.IAMService
	logger  *logger.Logger
}

// NewHandler creates a new IAM HTTP handler
func NewHandler(service interfaces.IAMService, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// RegisterAuthRoutes configures the unauthenticated auth endpoints
func (h *Handler) RegisterAuthRoutes(api *mux.Router) {
	api.HandleFunc("/auth/login", h.loginHandler).Methods("POST")
	api.HandleFunc("/auth/refresh", h.refreshHandler).Methods("POST")
}

// RegisterUserRoutes configures the user management endpoints; the caller
// mounts these behind the auth middleware.
func (h *Handler) RegisterUserRoutes(api *mux.Router) {
	api.HandleFunc("/users", h.registerUserHandler).Methods("POST")
	api.HandleFunc("/users", h.listUsersHandler).Methods("GET")
	api.HandleFunc("/users/{id}", h.getUserHandler).Methods("GET")
	api.HandleFunc("/users/{id}", h.updateUserHandler).Methods("PUT")
	api.HandleFunc("/users/{id}", h.deactivateUserHandler).Methods("DELETE")
	api.HandleFunc("/users/{id}/password/reset", h.resetPasswordHandler).Methods("POST")
	api.HandleFunc("/users/{id}/mfa", h.enableMFAHandler).Methods("POST")
	api.HandleFunc("/users/{id}/mfa/verify", h.verifyMFAHandler).Methods("POST")
	api.HandleFunc("/users/{id}/mfa", h.disableMFAHandler).Methods("DELETE")

	h.logger.Info("IAM routes configured")
}

// loginHandler authenticates a user and returns a token pair
func (h *Handler) loginHandler(w http.ResponseWriter, r *http.Request) {
	var credentials types.Credentials
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	token, err := h.service.AuthenticateUser(&credentials)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, token)
}

// refreshHandler exchanges a refresh token for a fresh pair
func (h *Handler) refreshHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	token, err := h.service.RefreshToken(body.RefreshToken)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, token)
}

// registerUserHandler creates a new user
func (h *Handler) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	var req types.UserRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	user, err := h.service.RegisterUser(&req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, user)
}

// getUserHandler retrieves a user
func (h *Handler) getUserHandler(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, user)
}

// updateUserHandler applies a partial user update
func (h *Handler) updateUserHandler(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	if err := h.service.UpdateUser(mux.Vars(r)["id"], updates); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "user updated"})
}

// deactivateUserHandler disables a user account
func (h *Handler) deactivateUserHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeactivateUser(mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "user deactivated"})
}

// listUsersHandler retrieves users with optional filters
func (h *Handler) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filters := map[string]interface{}{}
	if role := query.Get("role"); role != "" {
		filters["role"] = role
	}
	if site := query.Get("site_id"); site != "" {
		filters["site_id"] = site
	}

	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	users, err := h.service.ListUsers(filters, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, users)
}

// resetPasswordHandler issues a temporary password for a user
func (h *Handler) resetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	password, err := h.service.ResetPassword(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"temporary_password": password})
}

// enableMFAHandler enrolls a user in TOTP MFA
func (h *Handler) enableMFAHandler(w http.ResponseWriter, r *http.Request) {
	secret, err := h.service.EnableMFA(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"secret": secret})
}

// verifyMFAHandler checks a TOTP token
func (h *Handler) verifyMFAHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, types.NewValidationError(types.ErrCodeInvalidInput, "invalid request body", nil))
		return
	}

	valid, err := h.service.VerifyMFA(mux.Vars(r)["id"], body.Token)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// disableMFAHandler removes a user's MFA enrollment
func (h *Handler) disableMFAHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DisableMFA(mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "MFA disabled"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	response := map[string]interface{}{
		"error": "internal server error",
	}

	var clinicErr *types.ClinicError
	if errors.As(err, &clinicErr) {
		statusCode = clinicErr.HTTPStatus()
		response = map[string]interface{}{
			"error": clinicErr.Message,
			"code":  clinicErr.Code,
			"type":  clinicErr.Type,
		}
	} else {
		h.logger.WithError(err).Error("Unhandled error in IAM handler")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if encErr := json.NewEncoder(w).Encode(response); encErr != nil {
		h.logger.WithError(encErr).Error("Failed to encode error response")
	}
}
