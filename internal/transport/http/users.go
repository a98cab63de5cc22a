package http

import (
	"context"
	"net/http"

	"github.com/karanb04/18815-GoatTeam/internal/domain"
)

type Authenticator interface {
	Register(ctx context.Context, username, password string) (domain.User, error)
	Login(ctx context.Context, username, password string) (domain.User, error)
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

type loginResponse struct {
	Success bool      `json:"success"`
	User    loginUser `json:"user"`
}

type loginUser struct {
	Username string `json:"username"`
}

// HandleAddUser serves POST /add_user.
func HandleAddUser(svc Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if _, err := svc.Register(r.Context(), req.Username, req.Password); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeSuccess(w)
	}
}

// HandleLogin serves POST /login. Any credential failure is a 401.
func HandleLogin(svc Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentialsRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		u, err := svc.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, loginResponse{Success: true, User: loginUser{Username: u.Username}})
	}
}
