package http

import (
	"context"
	"net/http"

	"github.com/karanb04/18815-GoatTeam/internal/app"
	"github.com/karanb04/18815-GoatTeam/internal/domain"
)

type PoolCreator interface {
	CreatePool(ctx context.Context, in app.CreatePoolInput) (domain.Pool, error)
}

type PoolReader interface {
	GetPool(ctx context.Context, name string) (domain.Pool, error)
	ListPools(ctx context.Context) ([]domain.PoolSummary, error)
	Inventory(ctx context.Context) ([]domain.Pool, error)
	PoolNames(ctx context.Context) ([]string, error)
}

type HistoryReader interface {
	ProjectHistory(ctx context.Context, projectID string) ([]domain.LedgerEvent, error)
}

type createHardwareSetRequest struct {
	HWSetName string `json:"hwSetName" validate:"required,max=128"`
	Capacity  int    `json:"capacity" validate:"gt=0"`
}

// HandleCreateHardwareSet serves POST /create_hardware_set.
func HandleCreateHardwareSet(svc PoolCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createHardwareSetRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if _, err := svc.CreatePool(r.Context(), app.CreatePoolInput{Name: req.HWSetName, Capacity: req.Capacity}); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeSuccess(w)
	}
}

type hwInfoRequest struct {
	HWSetName string `json:"hwSetName" validate:"required"`
}

// HandleGetHWInfo serves POST /get_hw_info with the full pool record.
func HandleGetHWInfo(svc PoolReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req hwInfoRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		pool, err := svc.GetPool(r.Context(), req.HWSetName)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newPoolRecord(pool))
	}
}

// HandleInventory serves GET /api/inventory.
func HandleInventory(svc PoolReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pools, err := svc.Inventory(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		inventory := make(map[string]poolRecord, len(pools))
		for _, p := range pools {
			inventory[p.Name] = newPoolRecord(p)
		}
		writeJSON(w, http.StatusOK, map[string]any{"inventory": inventory})
	}
}

// HandleAvailability serves GET /api/availability.
func HandleAvailability(svc PoolReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := svc.ListPools(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		availability := make(map[string]availabilityRecord, len(summaries))
		for _, s := range summaries {
			availability[s.Name] = availabilityRecord{
				Capacity:     s.Capacity,
				Availability: s.Available,
				InUse:        s.InUse,
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"availability": availability})
	}
}

// HandleAllHWNames serves POST /get_all_hw_names. The body is ignored.
func HandleAllHWNames(svc PoolReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := svc.PoolNames(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"hardware_names": names})
	}
}

type projectIDRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
}

// HandleProjectHistory serves POST /get_project_history, newest event first.
func HandleProjectHistory(projects ProjectReader, history HistoryReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req projectIDRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if _, err := projects.GetProject(r.Context(), req.ProjectID); err != nil {
			writeServiceError(w, r, err)
			return
		}
		events, err := history.ProjectHistory(r.Context(), req.ProjectID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		out := make([]eventRecord, 0, len(events))
		for _, e := range events {
			out = append(out, newEventRecord(e, true))
		}
		writeJSON(w, http.StatusOK, map[string]any{"history": out})
	}
}
