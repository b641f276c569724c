package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

func newAuthFixture(t *testing.T) (*AuthService, *UserService, *StateService) {
	t.Helper()
	users, state := newUserServiceFixture(t, nil)
	auth := NewAuthService(state, users, nil, nil, AuthConfig{Secret: "test-secret", Expiry: time.Hour, Issuer: "supervision"})
	return auth, users, state
}

func TestAuthServiceLoginRoundTrip(t *testing.T) {
	auth, _, _ := newAuthFixture(t)

	resp, err := auth.Login(context.Background(), LoginRequest{Code: "111111", School: schoolA, AcademicYear: year})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.AdminUserID, resp.User.ID)
	assert.Equal(t, []string{schoolA, schoolB}, resp.Schools)

	claims, err := auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, schoolA, claims.School)
	assert.Equal(t, year, claims.AcademicYear)

	sess, err := auth.SessionFor(claims)
	require.NoError(t, err)
	assert.True(t, sess.Valid())
	assert.True(t, sess.HasPermission(models.PermManageData))
}

func TestAuthServiceLoginRejections(t *testing.T) {
	auth, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := auth.Login(ctx, LoginRequest{Code: "000000", School: schoolA, AcademicYear: year})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = auth.Login(ctx, LoginRequest{Code: "111111", School: "Nowhere", AcademicYear: year})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = auth.Login(ctx, LoginRequest{Code: "222222", School: schoolA, AcademicYear: year})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = auth.Login(ctx, LoginRequest{School: schoolA})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceTokenValidation(t *testing.T) {
	auth, _, _ := newAuthFixture(t)
	resp, err := auth.Login(context.Background(), LoginRequest{Code: "111111", School: schoolA, AcademicYear: year})
	require.NoError(t, err)

	_, err = auth.ValidateToken(resp.Token + "x")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = auth.ValidateToken(resp.Token)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceSessionForDeletedUser(t *testing.T) {
	auth, users, state := newAuthFixture(t)
	ctx := context.Background()

	created, err := users.Create(ctx, sessionFor(adminUser(), schoolA), UserInput{
		Name: "Temp", Code: "565656", Permissions: []models.Permission{models.PermViewTasks},
	})
	require.NoError(t, err)
	resp, err := auth.Login(ctx, LoginRequest{Code: "565656", School: schoolA, AcademicYear: year})
	require.NoError(t, err)
	claims, err := auth.ValidateToken(resp.Token)
	require.NoError(t, err)

	require.NoError(t, state.Mutate(ctx, func(c *models.Collections) error {
		DeleteCascade(c, models.KeyUsers, created.ID)
		return nil
	}))
	_, err = auth.SessionFor(claims)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceSwitchSchool(t *testing.T) {
	auth, _, _ := newAuthFixture(t)
	sess := sessionFor(adminUser(), schoolA)

	resp, err := auth.Switch(context.Background(), sess, SwitchRequest{School: schoolB, AcademicYear: "2025-2026"})
	require.NoError(t, err)
	claims, err := auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, schoolB, claims.School)
	assert.Equal(t, "2025-2026", claims.AcademicYear)

	_, err = auth.Switch(context.Background(), nil, SwitchRequest{School: schoolB, AcademicYear: year})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
