package domain

import (
	"sort"
	"time"
)

// Project groups members and the hardware they currently hold.
// Holdings never contain zero quantities.
type Project struct {
	ID          string
	Name        string
	Description string
	CreatedBy   string
	Members     []string
	Holdings    map[string]int
	CreatedAt   time.Time
}

// HasMember reports whether userID belongs to the project.
func (p Project) HasMember(userID string) bool {
	for _, m := range p.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Held returns the quantity of poolName held by the project.
func (p Project) Held(poolName string) int {
	return p.Holdings[poolName]
}

// SortedMembers returns a sorted copy of the member set.
func (p Project) SortedMembers() []string {
	out := append([]string(nil), p.Members...)
	sort.Strings(out)
	return out
}
