package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	"github.com/noah-isme/sma-supervision-api/pkg/kvstore"
)

const (
	schoolA = "North High"
	schoolB = "South High"
	year    = "2024-2025"
)

func adminUser() *models.User {
	return &models.User{ID: models.AdminUserID, Name: "Admin", Permissions: []models.Permission{models.PermissionAll}}
}

func supervisor(id string, perms ...models.Permission) *models.User {
	return &models.User{ID: id, Name: id, Permissions: perms}
}

func sessionFor(u *models.User, school string) *models.Session {
	return &models.Session{User: u, SelectedSchool: school, AcademicYear: year, Schools: []string{schoolA, schoolB}}
}

// seedStore writes every non-nil collection of c into a fresh memory store.
func seedStore(t *testing.T, c *models.Collections) *kvstore.Memory {
	t.Helper()
	store := kvstore.NewMemory()
	for key, field := range c.Fields() {
		payload, err := json.Marshal(field)
		require.NoError(t, err)
		if string(payload) == "null" {
			continue
		}
		require.NoError(t, store.Set(context.Background(), key, payload))
	}
	return store
}

func newLoadedState(t *testing.T, c *models.Collections) (*StateService, *kvstore.Memory) {
	t.Helper()
	store := seedStore(t, c)
	state := NewStateService(store, nil, nil)
	require.NoError(t, state.Load(context.Background()))
	return state, store
}

func scoredCriteria(scores ...int) []models.Criterion {
	out := make([]models.Criterion, len(scores))
	for i, s := range scores {
		out[i] = models.Criterion{ID: string(rune('a' + i)), Label: "criterion " + string(rune('A'+i)), Score: s}
	}
	return out
}

func generalReport(id, teacherID, school, date string, scores ...int) models.Report {
	return models.Report{
		Record:         models.Record{ID: id, School: school, AuthorID: models.AdminUserID, AcademicYear: year},
		TeacherID:      teacherID,
		Date:           date,
		EvaluationType: models.EvaluationGeneral,
		Criteria:       scoredCriteria(scores...),
	}
}

func classSessionReport(id, teacherID, date string, groups ...[]int) models.Report {
	r := models.Report{
		Record:         models.Record{ID: id, School: schoolA, AuthorID: models.AdminUserID, AcademicYear: year},
		TeacherID:      teacherID,
		Date:           date,
		EvaluationType: models.EvaluationClassSession,
		SubType:        models.SubTypeExtended,
	}
	for i, scores := range groups {
		r.CriterionGroups = append(r.CriterionGroups, models.CriterionGroup{
			ID:       string(rune('g' + i)),
			Title:    "group",
			Criteria: scoredCriteria(scores...),
		})
	}
	return r
}

// flakyStore fails every bulk write while failWrites is set.
type flakyStore struct {
	*kvstore.Memory
	failWrites bool
}

func (f *flakyStore) SetMany(ctx context.Context, values map[string][]byte) error {
	if f.failWrites {
		return errors.New("disk full")
	}
	return f.Memory.SetMany(ctx, values)
}
