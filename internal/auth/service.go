package auth

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Restore runs the session bootstrap state machine: given a session that may
// carry a user reference, resolve it to a live account.
//
//	Unauthenticated -> Restoring -> Authenticated | Failed
//
// An empty session short-circuits to Unauthenticated; a stale or deactivated
// account lands on Failed with the underlying error preserved.
func (s *Service) Restore(ctx context.Context, sess *shared.Session) BootstrapResult {
	if sess == nil || sess.User() == "" {
		return BootstrapResult{State: StateUnauthenticated}
	}

	result := BootstrapResult{State: StateRestoring}
	userID, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		result.State = StateFailed
		result.Err = err
		return result
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		result.State = StateFailed
		result.Err = err
		return result
	}
	if !user.IsActive {
		result.State = StateFailed
		result.Err = shared.ErrInvalidCredentials
		return result
	}
	result.State = StateAuthenticated
	result.User = user
	return result
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
