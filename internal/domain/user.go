package domain

import "time"

// User is a registered account. Username doubles as the user id.
type User struct {
	Username           string
	PasswordHash       string
	ProjectMemberships []string
	CreatedAt          time.Time
}
