package domain

import "time"

type LedgerAction string

const (
	ActionCheckout LedgerAction = "checkout"
	ActionCheckin  LedgerAction = "checkin"
)

func (a LedgerAction) Valid() bool {
	return a == ActionCheckout || a == ActionCheckin
}

// LedgerEvent is one entry of a pool's append-only history.
type LedgerEvent struct {
	ID        string
	PoolName  string
	Action    LedgerAction
	ProjectID string
	UserID    string
	Quantity  int
	Timestamp time.Time
}
