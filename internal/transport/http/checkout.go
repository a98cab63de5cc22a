package http

import (
	"context"
	"net/http"

	"github.com/karanb04/18815-GoatTeam/internal/app"
)

// Transferer moves units between pools and project holdings.
type Transferer interface {
	CheckOut(ctx context.Context, in app.TransferInput) error
	CheckIn(ctx context.Context, in app.TransferInput) error
}

// transferRequest accepts the acting user as userId or, from older clients, username.
type transferRequest struct {
	ProjectID string `json:"projectId" validate:"required,max=128"`
	HWSetName string `json:"hwSetName" validate:"required,max=128"`
	Qty       int    `json:"qty" validate:"gt=0"`
	UserID    string `json:"userId" validate:"required_without=Username,max=64"`
	Username  string `json:"username" validate:"max=64"`
}

func (r transferRequest) input() app.TransferInput {
	user := r.UserID
	if user == "" {
		user = r.Username
	}
	return app.TransferInput{
		ProjectID: r.ProjectID,
		PoolName:  r.HWSetName,
		Quantity:  r.Qty,
		UserID:    user,
	}
}

// HandleCheckOut serves POST /check_out.
func HandleCheckOut(svc Transferer) http.HandlerFunc {
	return handleTransfer(svc.CheckOut)
}

// HandleCheckIn serves POST /check_in.
func HandleCheckIn(svc Transferer) http.HandlerFunc {
	return handleTransfer(svc.CheckIn)
}

func handleTransfer(op func(context.Context, app.TransferInput) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transferRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := op(r.Context(), req.input()); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeSuccess(w)
	}
}
