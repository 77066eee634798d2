package auth

import "time"

// User represents an authenticated user account.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BootstrapState tracks the session restoration lifecycle for a request.
// Restoration either lands on Authenticated or Failed; it never stays
// in Restoring once Restore returns.
type BootstrapState string

const (
	StateUnauthenticated BootstrapState = "UNAUTHENTICATED"
	StateRestoring       BootstrapState = "RESTORING"
	StateAuthenticated   BootstrapState = "AUTHENTICATED"
	StateFailed          BootstrapState = "FAILED"
)

// BootstrapResult carries the outcome of a session restore attempt.
type BootstrapResult struct {
	State BootstrapState
	User  *User
	Err   error
}
