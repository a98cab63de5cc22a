package domain

import "time"

// Pool is a named hardware set with a fixed capacity.
// Available is always in [0, Capacity].
type Pool struct {
	Name      string
	Capacity  int
	Available int
	History   []LedgerEvent
	CreatedAt time.Time
}

// InUse is the number of units currently held by projects.
func (p Pool) InUse() int {
	return p.Capacity - p.Available
}

// Summary drops the history.
func (p Pool) Summary() PoolSummary {
	return PoolSummary{
		Name:      p.Name,
		Capacity:  p.Capacity,
		Available: p.Available,
		InUse:     p.InUse(),
	}
}

type PoolSummary struct {
	Name      string
	Capacity  int
	Available int
	InUse     int
}

// PoolSpec describes a pool to provision.
type PoolSpec struct {
	Name     string
	Capacity int
}
