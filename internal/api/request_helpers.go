package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aurumhq/aurum-api/internal/api/shared"
	"github.com/aurumhq/aurum-api/internal/domain"
)

// HandleAPIError maps err to a status code and a sanitized message, writes
// the error response, and logs the original error. When fallbackMessage is
// non-empty it replaces the generic message for unmapped (500) errors, so
// handlers can say which operation failed without exposing the error itself.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallbackMessage string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if fallbackMessage != "" && status == http.StatusInternalServerError {
		message = fallbackMessage
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}

// getUserIDFromContext extracts the authenticated user's UUID from the
// request context, where the authentication middleware placed it.
func getUserIDFromContext(r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, false
	}
	return userID, true
}

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}
	return id, nil
}

// queryInt parses an integer query parameter, returning def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer", domain.ErrValidation)
	}
	return value, nil
}

// queryTime parses a time query parameter as RFC 3339 or as a bare date
// ("2006-01-02", midnight UTC). It returns the zero time when absent.
func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, domain.NewValidationError(name, "must be RFC 3339 or YYYY-MM-DD", domain.ErrValidation)
}

// queryWindow parses the from/to pair analytics endpoints take. Both are
// required; the services themselves enforce that to is after from.
func queryWindow(r *http.Request) (from, to time.Time, err error) {
	from, err = queryTime(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if from.IsZero() {
		return time.Time{}, time.Time{}, domain.NewValidationError("from", "is required", domain.ErrValidation)
	}
	to, err = queryTime(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.IsZero() {
		return time.Time{}, time.Time{}, domain.NewValidationError("to", "is required", domain.ErrValidation)
	}
	return from, to, nil
}

// queryPage parses limit/offset with the given default limit.
func queryPage(r *http.Request, defaultLimit int) (limit, offset int, err error) {
	limit, err = queryInt(r, "limit", defaultLimit)
	if err != nil {
		return 0, 0, err
	}
	offset, err = queryInt(r, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}
