package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aurumhq/aurum-api/internal/api/shared"
	"github.com/aurumhq/aurum-api/internal/platform/logger"
	"github.com/aurumhq/aurum-api/internal/service"
)

// AuthHandler handles authentication-related API requests.
type AuthHandler struct {
	authService service.AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. If log is nil, the process
// default logger is used.
func NewAuthHandler(authService service.AuthService, log *slog.Logger) *AuthHandler {
	if authService == nil {
		panic("auth service cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		authService: authService,
		logger:      log.With(slog.String("component", "auth_handler")),
	}
}

// Register handles POST /auth/register requests.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req RegisterRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.Validate.Struct(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	user, err := h.authService.Register(r.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to register user")
		return
	}

	log.Info("user registered",
		slog.String("user_id", user.ID.String()),
		slog.String("role", user.Role))
	shared.RespondWithJSON(w, r, http.StatusCreated, user)
}

// Login handles POST /auth/login requests.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.Validate.Struct(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// Failed logins are an operational signal worth surfacing in logs.
		if errors.Is(err, service.ErrInvalidCredentials) {
			shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized,
				"Invalid credentials", err, shared.WithElevatedLogLevel())
			return
		}
		HandleAPIError(w, r, err, "Failed to authenticate user")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, authResultToResponse(result))
}

// RefreshToken handles POST /auth/refresh requests.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.Validate.Struct(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	result, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to refresh token")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, authResultToResponse(result))
}

// authResultToResponse converts a service.AuthResult to an AuthResponse.
func authResultToResponse(result *service.AuthResult) AuthResponse {
	return AuthResponse{
		UserID:       result.User.ID,
		Email:        result.User.Email,
		Role:         result.User.Role,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}
}
