package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/karanb04/18815-GoatTeam/internal/domain"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeInvalidArgument      = "invalid_argument"
	codePoolNotFound         = "pool_not_found"
	codeProjectNotFound      = "project_not_found"
	codeUserNotFound         = "user_not_found"
	codePoolAlreadyExists    = "pool_already_exists"
	codeProjectAlreadyExists = "project_already_exists"
	codeUserAlreadyExists    = "user_already_exists"
	codeInsufficientCapacity = "insufficient_capacity"
	codeExceedsHeld          = "exceeds_held"
	codeNotMember            = "not_member"
	codeInvalidCredentials   = "invalid_credentials"
	codeUnauthorized         = "unauthorized"
	codeForbidden            = "forbidden"
	codeRateLimited          = "rate_limited"
	codeStorageUnavailable   = "storage_unavailable"
	codeInconsistentState    = "inconsistent_state"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// statusFor maps a service error onto an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInconsistentState):
		return http.StatusInternalServerError, codeInconsistentState
	case errors.Is(err, domain.ErrPoolNotFound):
		return http.StatusNotFound, codePoolNotFound
	case errors.Is(err, domain.ErrProjectNotFound):
		return http.StatusNotFound, codeProjectNotFound
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, codeUserNotFound
	case errors.Is(err, domain.ErrPoolAlreadyExists):
		return http.StatusConflict, codePoolAlreadyExists
	case errors.Is(err, domain.ErrProjectAlreadyExists):
		return http.StatusConflict, codeProjectAlreadyExists
	case errors.Is(err, domain.ErrUserAlreadyExists):
		return http.StatusConflict, codeUserAlreadyExists
	case errors.Is(err, domain.ErrInsufficientCapacity):
		return http.StatusBadRequest, codeInsufficientCapacity
	case errors.Is(err, domain.ErrExceedsHeld):
		return http.StatusBadRequest, codeExceedsHeld
	case errors.Is(err, domain.ErrNotMember):
		return http.StatusForbidden, codeNotMember
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, codeInvalidCredentials
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, codeStorageUnavailable
	case domain.KindOf(err) == domain.KindInvalidArgument:
		return http.StatusBadRequest, codeInvalidArgument
	default:
		return http.StatusInternalServerError, codeInternalError
	}
}

// writeServiceError writes err as JSON. Server-side failures are logged and
// their detail is not exposed to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("code", code).Msg("request failed")
		switch code {
		case codeInconsistentState:
			msg = "inconsistent state: manual reconciliation required"
		case codeStorageUnavailable:
			msg = "storage unavailable, retry later"
		default:
			msg = "internal error"
		}
	}
	writeError(w, status, code, msg)
}
