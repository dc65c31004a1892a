package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-portal/internal/model"
	"github.com/jwalitptl/clinic-portal/internal/repository/memory"
	"github.com/jwalitptl/clinic-portal/internal/repository/seed"
	"github.com/jwalitptl/clinic-portal/internal/service/user"
	"github.com/jwalitptl/clinic-portal/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-portal/pkg/errors"
	"github.com/jwalitptl/clinic-portal/pkg/security"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func newTestService(t *testing.T) (*Service, *user.Service, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}

	users := user.NewService(
		memory.NewUserRepository(),
		security.NewBcryptHasher(bcrypt.MinCost),
		user.WithClock(clock.Now),
	)
	tokens, err := auth.NewTokenManager("test-secret", "clinic-portal", clock.Now)
	require.NoError(t, err)

	return NewService(users, tokens, Config{TokenTTL: time.Hour, GuestTTL: 10 * time.Minute}, clock.Now), users, clock
}

var registration = &model.RegisterRequest{
	Email:    "pat@demo.com",
	Password: "secret1",
	Name:     "Pat",
	Phone:    "555-0100",
}

func TestRegisterLoginLogout(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, registration)
	require.NoError(t, err)
	require.NotNil(t, reg.User)
	assert.Equal(t, model.RolePatient, reg.User.Role)

	login, err := svc.Login(ctx, &model.LoginRequest{Email: "pat@demo.com", Password: "secret1", Role: model.RolePatient})
	require.NoError(t, err)

	current, err := svc.CurrentUser(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, current.ID)

	require.NoError(t, svc.Logout(ctx, login.Token))
	_, err = svc.CurrentUser(ctx, login.Token)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	// The registration session is independent of the logged-out one.
	_, err = svc.CurrentUser(ctx, reg.Token)
	assert.NoError(t, err)

	// Logging out twice is harmless.
	assert.NoError(t, svc.Logout(ctx, login.Token))
}

func TestLoginRejectsWrongRole(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, registration)
	require.NoError(t, err)

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "pat@demo.com", Password: "secret1", Role: model.RoleDoctor})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidCredentials))
}

func TestCurrentUserReflectsProfileUpdate(t *testing.T) {
	svc, users, _ := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, registration)
	require.NoError(t, err)

	name := "Patricia"
	_, err = users.Update(ctx, reg.User.ID, &model.UpdateUserRequest{Name: &name})
	require.NoError(t, err)

	current, err := svc.CurrentUser(ctx, reg.Token)
	require.NoError(t, err)
	assert.Equal(t, "Patricia", current.Name)
}

func TestSessionExpiry(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, registration)
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Hour)
	_, err = svc.Resolve(ctx, reg.Token)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestGuestLogin(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	guest, err := svc.GuestLogin(ctx)
	require.NoError(t, err)
	assert.True(t, guest.Guest)
	assert.Nil(t, guest.User)

	session, err := svc.Resolve(ctx, guest.Token)
	require.NoError(t, err)
	assert.True(t, session.Guest)
	assert.Equal(t, model.RolePatient, session.Role)

	u, err := svc.CurrentUser(ctx, guest.Token)
	assert.NoError(t, err)
	assert.Nil(t, u)
}

func TestResolveRejectsForeignToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Resolve(context.Background(), "garbage")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestLoginWithSeededAccounts(t *testing.T) {
	ctx := context.Background()
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	store := memory.NewStore()

	fixtures, err := seed.Load()
	require.NoError(t, err)
	require.NoError(t, seed.Apply(ctx, store, fixtures, hasher, "/mock-files"))

	tokens, err := auth.NewTokenManager("test-secret", "clinic-portal", time.Now)
	require.NoError(t, err)
	svc := NewService(user.NewService(store.Users, hasher), tokens, Config{TokenTTL: time.Hour}, time.Now)

	login, err := svc.Login(ctx, &model.LoginRequest{Email: "doctor@demo.com", Password: "demo123", Role: model.RoleDoctor})
	require.NoError(t, err)
	require.NotNil(t, login.User)
	assert.Equal(t, model.RoleDoctor, login.User.Role)
	assert.Equal(t, "Dr. Sarah Johnson", login.User.Name)
	assert.NotEmpty(t, login.Token)

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "doctor@demo.com", Password: "demo123", Role: model.RolePatient})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidCredentials))
	assert.Equal(t, "Invalid credentials or role", err.Error())

	patient, err := svc.Login(ctx, &model.LoginRequest{Email: "patient@demo.com", Password: "demo123", Role: model.RolePatient})
	require.NoError(t, err)
	assert.Equal(t, "John Smith", patient.User.Name)
}
