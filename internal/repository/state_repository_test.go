package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStateRepoMock(t *testing.T) (*StateRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewStateRepository(sqlxDB, nil), mock, func() {
		sqlxDB.Close()
	}
}

func TestStateRepositoryGet(t *testing.T) {
	repo, mock, cleanup := newStateRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT value FROM app_state WHERE key = \\$1").
		WithArgs("teachers").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`[{"id":"t1"}]`))

	value, ok, err := repo.Get(context.Background(), "teachers")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"t1"}]`, string(value))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStateRepositoryGetMissing(t *testing.T) {
	repo, mock, cleanup := newStateRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT value FROM app_state").
		WithArgs("reports").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	value, ok, err := repo.Get(context.Background(), "reports")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestStateRepositorySet(t *testing.T) {
	repo, mock, cleanup := newStateRepoMock(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO app_state").
		WithArgs("schools", `["A"]`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Set(context.Background(), "schools", []byte(`["A"]`)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStateRepositoryKeys(t *testing.T) {
	repo, mock, cleanup := newStateRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT key FROM app_state ORDER BY key ASC").
		WillReturnRows(sqlmock.NewRows([]string{"key"}).AddRow("reports").AddRow("teachers"))

	keys, err := repo.Keys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"reports", "teachers"}, keys)
}

func TestStateRepositorySetManyCommits(t *testing.T) {
	repo, mock, cleanup := newStateRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO app_state").
		WithArgs("reports", "[]", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO app_state").
		WithArgs("teachers", "[]", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SetMany(context.Background(), map[string][]byte{
		"teachers": []byte("[]"),
		"reports":  []byte("[]"),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStateRepositorySetManyRollsBack(t *testing.T) {
	repo, mock, cleanup := newStateRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO app_state").
		WithArgs("reports", "[]", sqlmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.SetMany(context.Background(), map[string][]byte{
		"teachers": []byte("[]"),
		"reports":  []byte("[]"),
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStateRepositoryRemove(t *testing.T) {
	repo, mock, cleanup := newStateRepoMock(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM app_state WHERE key = \\$1").
		WithArgs("theme").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Remove(context.Background(), "theme"))
}
