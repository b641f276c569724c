package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
	"github.com/noah-isme/sma-supervision-api/pkg/export"
	"github.com/noah-isme/sma-supervision-api/pkg/storage"
)

type exportCounter struct {
	formats []string
}

func (c *exportCounter) RecordExport(format string) {
	c.formats = append(c.formats, format)
}

func newExportFixture(t *testing.T) (*ExportService, *exportCounter) {
	t.Helper()
	report := generalReport("r1", "t1", schoolA, "2024-03-01", 4, 3)
	report.Positives = "Clear objectives"
	state, _ := newLoadedState(t, &models.Collections{
		Schools:  []string{schoolA},
		Teachers: []models.Teacher{{ID: "t1", Name: "Amal Haddad", School: schoolA}},
		Reports:  []models.Report{report},
		Tasks: []models.Task{
			{Record: models.Record{ID: "k1", School: schoolA, AuthorID: models.AdminUserID}, Title: "Visit lab", Status: models.StatusNotDone},
		},
	})
	scope := NewScopeEngine(nil)
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	counter := &exportCounter{}
	svc := NewExportService(ExportSources{
		Reports:   NewReportService(state, scope, nil, nil),
		Teachers:  NewTeacherService(state, scope, nil, nil),
		Analytics: NewDashboardService(state, scope, nil, nil, DashboardServiceConfig{}),
		Coverage:  NewSyllabusService(state, scope, nil, nil),
		Tasks:     NewTaskService(state, scope, nil, nil),
		Meetings:  NewMeetingService(state, scope, nil, nil),
	}, export.NewRegistry(export.Options{}), files, storage.NewSignedURLSigner("secret", time.Hour), counter, ExportConfig{APIPrefix: "/api/v1"}, nil)
	return svc, counter
}

func TestExportServiceReportText(t *testing.T) {
	svc, counter := newExportFixture(t)

	result, err := svc.Export(context.Background(), sessionFor(adminUser(), schoolA), ExportRequest{
		Kind: ExportReport, Format: export.FormatText, ReportID: "r1",
	})
	require.NoError(t, err)
	body := string(result.Content)
	assert.Contains(t, body, "Amal Haddad")
	assert.Contains(t, body, "criterion A")
	assert.Contains(t, body, "Total: 87.5%")
	assert.Contains(t, body, "Positives: Clear objectives")
	assert.Equal(t, []string{"txt"}, counter.formats)
	assert.Empty(t, result.Token)
}

func TestExportServiceShareURL(t *testing.T) {
	svc, _ := newExportFixture(t)

	result, err := svc.Export(context.Background(), sessionFor(adminUser(), schoolA), ExportRequest{
		Kind: ExportTasks, Format: export.FormatShare,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.ShareURL, "https://wa.me/?text="))
	assert.Contains(t, result.ShareURL, "Visit%20lab")
}

func TestExportServicePersistAndDownload(t *testing.T) {
	svc, _ := newExportFixture(t)
	ctx := context.Background()

	result, err := svc.Export(ctx, sessionFor(adminUser(), schoolA), ExportRequest{
		Kind: ExportAggregate, Format: export.FormatCSV, Persist: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/exports/download/"))

	downloaded, err := svc.Download(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.Content, downloaded.Content)
	assert.Equal(t, export.FormatCSV, downloaded.Format)
	assert.Contains(t, string(downloaded.Content), "Amal Haddad")

	_, err = svc.Download(ctx, result.Token+"0")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestExportServiceRejections(t *testing.T) {
	svc, _ := newExportFixture(t)
	ctx := context.Background()
	sess := sessionFor(adminUser(), schoolA)

	_, err := svc.Export(ctx, sess, ExportRequest{Kind: ExportReport, Format: export.FormatPDF})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Export(ctx, sess, ExportRequest{Kind: "grades", Format: export.FormatPDF})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Export(ctx, sessionFor(supervisor("u1", models.PermViewTeachers), schoolA), ExportRequest{
		Kind: ExportAnalysis, Format: export.FormatXLSX,
	})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Export(ctx, sess, ExportRequest{Kind: ExportReport, Format: export.FormatText, ReportID: "missing"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
