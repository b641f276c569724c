package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
)

type stubCompleter struct {
	replies []string
	err     error
	calls   int
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func hashCode(t *testing.T, code string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newUserServiceFixture(t *testing.T, ai textCompleter) (*UserService, *StateService) {
	t.Helper()
	admin := *adminUser()
	admin.CodeHash = hashCode(t, "111111")
	state, _ := newLoadedState(t, &models.Collections{
		Schools: []string{schoolA, schoolB},
		Users: []models.User{
			admin,
			{ID: "u-south", Name: "South only", CodeHash: hashCode(t, "222222"), SchoolName: schoolB,
				Permissions: []models.Permission{models.PermViewTeachers}},
		},
	})
	svc := NewUserService(state, NewScopeEngine(nil), ai, nil, nil, UserServiceConfig{HashCost: bcrypt.MinCost})
	return svc, state
}

func TestUserServiceListHidesOtherSchoolsAndHashes(t *testing.T) {
	svc, _ := newUserServiceFixture(t, nil)

	views, err := svc.List(context.Background(), sessionFor(adminUser(), schoolA))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, models.AdminUserID, views[0].ID)
	assert.True(t, views[0].Undeletable)

	views, err = svc.List(context.Background(), sessionFor(adminUser(), schoolB))
	require.NoError(t, err)
	assert.Len(t, views, 2)
}

func TestUserServiceCreateAndAuthenticate(t *testing.T) {
	svc, _ := newUserServiceFixture(t, nil)
	ctx := context.Background()
	sess := sessionFor(adminUser(), schoolA)

	created, err := svc.Create(ctx, sess, UserInput{
		Name:        "Supervisor",
		Code:        "333333",
		Permissions: []models.Permission{models.PermViewTeachers, models.PermViewTasks},
	})
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "333333")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	_, err = svc.Authenticate(ctx, "999999")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Create(ctx, sess, UserInput{Name: "Dup", Code: "222222", Permissions: []models.Permission{models.PermViewTeachers}})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Create(ctx, sess, UserInput{Name: "Bad", Code: "444444", Permissions: []models.Permission{"fly"}})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(ctx, sess, UserInput{Name: "No code", Permissions: []models.Permission{models.PermViewTeachers}})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(ctx, sessionFor(supervisor("x", models.PermViewTeachers), schoolA), UserInput{Name: "x", Code: "555555", Permissions: []models.Permission{models.PermViewTeachers}})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestUserServiceUpdateKeepsCodeAndAdminWildcard(t *testing.T) {
	svc, _ := newUserServiceFixture(t, nil)
	ctx := context.Background()
	sess := sessionFor(adminUser(), schoolA)

	view, err := svc.Update(ctx, sess, models.AdminUserID, UserInput{Name: "Root", Permissions: []models.Permission{models.PermManageData}})
	require.NoError(t, err)
	assert.Contains(t, view.Permissions, models.PermissionAll)
	assert.Equal(t, "Root", view.Name)

	user, err := svc.Authenticate(ctx, "111111")
	require.NoError(t, err)
	assert.Equal(t, models.AdminUserID, user.ID)

	_, err = svc.Update(ctx, sess, "u-south", UserInput{Name: "x", Permissions: []models.Permission{models.PermViewTeachers}})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestUserServiceManagerCannotEscalate(t *testing.T) {
	svc, _ := newUserServiceFixture(t, nil)
	ctx := context.Background()
	admin := sessionFor(adminUser(), schoolA)

	created, err := svc.Create(ctx, admin, UserInput{
		Name:        "Deputy",
		Code:        "333333",
		Permissions: []models.Permission{models.PermManageUsers},
		SchoolName:  schoolA,
	})
	require.NoError(t, err)
	manager := sessionFor(&models.User{ID: created.ID, Name: created.Name, Permissions: created.Permissions, SchoolName: schoolA}, schoolA)

	_, err = svc.Create(ctx, manager, UserInput{Name: "Root 2", Code: "444444", Permissions: []models.Permission{models.PermissionAll}})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Update(ctx, manager, created.ID, UserInput{Name: "Deputy", Permissions: []models.Permission{models.PermissionAll}})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Update(ctx, manager, models.AdminUserID, UserInput{Name: "Admin", Code: "999999", Permissions: []models.Permission{models.PermManageUsers}})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Authenticate(ctx, "999999")
	assert.Error(t, err)
	user, err := svc.Authenticate(ctx, "111111")
	require.NoError(t, err)
	assert.Equal(t, models.AdminUserID, user.ID)

	err = svc.Delete(ctx, manager, models.AdminUserID)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	view, err := svc.Update(ctx, manager, created.ID, UserInput{Name: "Deputy head", Permissions: []models.Permission{models.PermManageUsers, models.PermViewTeachers}})
	require.NoError(t, err)
	assert.Equal(t, "Deputy head", view.Name)

	_, err = svc.Create(ctx, admin, UserInput{Name: "Second admin", Code: "555555", Permissions: []models.Permission{models.PermissionAll}})
	assert.NoError(t, err)
}

func TestUserServiceDelete(t *testing.T) {
	svc, state := newUserServiceFixture(t, nil)
	ctx := context.Background()

	err := svc.Delete(ctx, sessionFor(adminUser(), schoolA), models.AdminUserID)
	assert.True(t, errors.Is(err, appErrors.ErrUndeletable))

	require.NoError(t, svc.Delete(ctx, sessionFor(adminUser(), schoolB), "u-south"))
	c, _ := state.Snapshot()
	assert.Len(t, c.Users, 1)
}

func TestUserServiceGenerateCode(t *testing.T) {
	sess := sessionFor(adminUser(), schoolA)

	ai := &stubCompleter{replies: []string{"111111", "Here you go: 654321"}}
	svc, _ := newUserServiceFixture(t, ai)
	code, err := svc.GenerateCode(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "654321", code)
	assert.Equal(t, 2, ai.calls)

	failing := &stubCompleter{err: errors.New("offline")}
	svc, _ = newUserServiceFixture(t, failing)
	code, err = svc.GenerateCode(context.Background(), sess)
	require.NoError(t, err)
	assert.Len(t, code, accessCodeLength)
	assert.Equal(t, code, digitsOnly(code))
	assert.Equal(t, 1, failing.calls)

	svc, _ = newUserServiceFixture(t, nil)
	code, err = svc.GenerateCode(context.Background(), sess)
	require.NoError(t, err)
	assert.Len(t, code, accessCodeLength)
}

func TestUserServiceEnsureAdmin(t *testing.T) {
	state, _ := newLoadedState(t, &models.Collections{Schools: []string{schoolA}})
	svc := NewUserService(state, NewScopeEngine(nil), nil, nil, nil, UserServiceConfig{HashCost: bcrypt.MinCost})
	ctx := context.Background()

	code, err := svc.EnsureAdmin(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, code, accessCodeLength)

	admin, err := svc.Authenticate(ctx, code)
	require.NoError(t, err)
	assert.True(t, admin.Undeletable())
	assert.Equal(t, "Administrator", admin.Name)

	again, err := svc.EnsureAdmin(ctx, "777777", "Other")
	require.NoError(t, err)
	assert.Empty(t, again)
	_, err = svc.Authenticate(ctx, "777777")
	assert.Error(t, err)
}
