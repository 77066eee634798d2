package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

type memoryRepo struct {
	users map[int64]*User
}

func (r *memoryRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) FindByID(ctx context.Context, id int64) (*User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (r *memoryRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthenticate(t *testing.T) {
	repo := &memoryRepo{users: map[int64]*User{
		1: {ID: 1, Email: "gudang@lumbung.id", PasswordHash: hashOf(t, "rahasia-123"), IsActive: true},
		2: {ID: 2, Email: "nonaktif@lumbung.id", PasswordHash: hashOf(t, "rahasia-123"), IsActive: false},
	}}
	svc := NewService(repo)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "gudang@lumbung.id", "rahasia-123")
	require.NoError(t, err)
	require.Equal(t, int64(1), user.ID)

	_, err = svc.Authenticate(ctx, "gudang@lumbung.id", "salah")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nonaktif@lumbung.id", "rahasia-123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestRestoreStateMachine(t *testing.T) {
	repo := &memoryRepo{users: map[int64]*User{
		1: {ID: 1, Email: "gudang@lumbung.id", IsActive: true},
		2: {ID: 2, Email: "nonaktif@lumbung.id", IsActive: false},
	}}
	svc := NewService(repo)
	ctx := context.Background()

	t.Run("no session is unauthenticated", func(t *testing.T) {
		result := svc.Restore(ctx, nil)
		require.Equal(t, StateUnauthenticated, result.State)
		require.Nil(t, result.User)
	})

	t.Run("empty session is unauthenticated", func(t *testing.T) {
		result := svc.Restore(ctx, &shared.Session{})
		require.Equal(t, StateUnauthenticated, result.State)
	})

	t.Run("valid user authenticates", func(t *testing.T) {
		sess := &shared.Session{}
		sess.SetUser("1")
		result := svc.Restore(ctx, sess)
		require.Equal(t, StateAuthenticated, result.State)
		require.NotNil(t, result.User)
		require.Equal(t, "gudang@lumbung.id", result.User.Email)
	})

	t.Run("unknown user fails", func(t *testing.T) {
		sess := &shared.Session{}
		sess.SetUser("99")
		result := svc.Restore(ctx, sess)
		require.Equal(t, StateFailed, result.State)
		require.ErrorIs(t, result.Err, shared.ErrNotFound)
	})

	t.Run("deactivated user fails", func(t *testing.T) {
		sess := &shared.Session{}
		sess.SetUser("2")
		result := svc.Restore(ctx, sess)
		require.Equal(t, StateFailed, result.State)
		require.ErrorIs(t, result.Err, shared.ErrInvalidCredentials)
	})

	t.Run("garbage user id fails", func(t *testing.T) {
		sess := &shared.Session{}
		sess.SetUser("not-a-number")
		result := svc.Restore(ctx, sess)
		require.Equal(t, StateFailed, result.State)
		require.Error(t, result.Err)
	})
}
