package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	"github.com/noah-isme/sma-supervision-api/internal/service"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
	"github.com/noah-isme/sma-supervision-api/pkg/export"
)

type fakeExporter struct {
	result *service.ExportResult
	err    error
	last   service.ExportRequest
}

func (f *fakeExporter) Export(_ context.Context, _ *models.Session, req service.ExportRequest) (*service.ExportResult, error) {
	f.last = req
	return f.result, f.err
}

func (f *fakeExporter) Download(_ context.Context, token string) (*service.ExportResult, error) {
	if token != "signed" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	return f.result, nil
}

func TestExportHandlerStreamsInlineDocument(t *testing.T) {
	fake := &fakeExporter{result: &service.ExportResult{
		Format: export.FormatText, Filename: "report.txt", ContentType: "text/plain; charset=utf-8", Content: []byte("Total: 87.5%"),
	}}
	c, rec := newTestContext(http.MethodPost, "/exports", `{"kind":"report","format":"txt","reportId":"r1"}`)
	NewExportHandler(fake).Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r1", fake.last.ReportID)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "report.txt")
	assert.Equal(t, "Total: 87.5%", rec.Body.String())
}

func TestExportHandlerReturnsShareLinkAsJSON(t *testing.T) {
	fake := &fakeExporter{result: &service.ExportResult{Format: export.FormatShare, ShareURL: "https://wa.me/?text=hi"}}
	c, rec := newTestContext(http.MethodPost, "/exports", `{"kind":"report","format":"share","reportId":"r1"}`)
	NewExportHandler(fake).Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "https://wa.me/?text=hi", envelope.Data["shareUrl"])
}

func TestExportHandlerRejectsMalformedBody(t *testing.T) {
	c, rec := newTestContext(http.MethodPost, "/exports", `{"kind":`)
	NewExportHandler(&fakeExporter{}).Export(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportHandlerDownload(t *testing.T) {
	fake := &fakeExporter{result: &service.ExportResult{Filename: "tasks.csv", ContentType: "text/csv", Content: []byte("a,b\n")}}

	c, rec := newTestContext(http.MethodGet, "/exports/download/signed", "")
	c.Params = append(c.Params, ginParam("token", "signed"))
	NewExportHandler(fake).Download(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a,b\n", rec.Body.String())

	c, rec = newTestContext(http.MethodGet, "/exports/download/forged", "")
	c.Params = append(c.Params, ginParam("token", "forged"))
	NewExportHandler(fake).Download(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
