package http

import (
	"time"

	"github.com/karanb04/18815-GoatTeam/internal/domain"
)

type eventRecord struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Action    string `json:"action"`
	Quantity  int    `json:"quantity"`
	Timestamp string `json:"timestamp"`
	HWSetName string `json:"hwSetName,omitempty"`
}

type poolRecord struct {
	HWName          string        `json:"hwName"`
	Capacity        int           `json:"capacity"`
	Availability    int           `json:"availability"`
	CheckoutHistory []eventRecord `json:"checkout_history"`
}

type availabilityRecord struct {
	Capacity     int `json:"capacity"`
	Availability int `json:"availability"`
	InUse        int `json:"in_use"`
}

type projectRecord struct {
	ProjectID   string         `json:"projectId"`
	ProjectName string         `json:"projectName"`
	Description string         `json:"description"`
	HWSets      map[string]int `json:"hwSets"`
	Users       []string       `json:"users"`
	CreatedBy   string         `json:"created_by"`
	CreatedAt   string         `json:"created_at"`
}

func newEventRecord(e domain.LedgerEvent, withPool bool) eventRecord {
	rec := eventRecord{
		ID:        e.ID,
		ProjectID: e.ProjectID,
		UserID:    e.UserID,
		Username:  e.UserID,
		Action:    string(e.Action),
		Quantity:  e.Quantity,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if withPool {
		rec.HWSetName = e.PoolName
	}
	return rec
}

func newPoolRecord(p domain.Pool) poolRecord {
	history := make([]eventRecord, 0, len(p.History))
	for _, e := range p.History {
		history = append(history, newEventRecord(e, false))
	}
	return poolRecord{
		HWName:          p.Name,
		Capacity:        p.Capacity,
		Availability:    p.Available,
		CheckoutHistory: history,
	}
}

func newProjectRecord(p domain.Project) projectRecord {
	holdings := make(map[string]int, len(p.Holdings))
	for name, qty := range p.Holdings {
		if qty > 0 {
			holdings[name] = qty
		}
	}
	users := p.Members
	if users == nil {
		users = []string{}
	}
	return projectRecord{
		ProjectID:   p.ID,
		ProjectName: p.Name,
		Description: p.Description,
		HWSets:      holdings,
		Users:       users,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
	}
}
