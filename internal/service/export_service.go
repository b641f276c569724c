package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-supervision-api/internal/dto"
	"github.com/noah-isme/sma-supervision-api/internal/models"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
	"github.com/noah-isme/sma-supervision-api/pkg/export"
	"github.com/noah-isme/sma-supervision-api/pkg/storage"
)

// Export dataset kinds.
const (
	ExportReport      = "report"
	ExportAggregate   = "aggregate"
	ExportAnalysis    = "analysis"
	ExportPerformance = "performance"
	ExportCoverage    = "coverage"
	ExportTasks       = "tasks"
	ExportMeetings    = "meetings"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type exportRenderer interface {
	Render(format export.Format, data export.Dataset) ([]byte, error)
}

type reportReader interface {
	Get(ctx context.Context, sess *models.Session, id string) (*ReportView, error)
}

type teacherReader interface {
	Get(ctx context.Context, sess *models.Session, id string) (*models.Teacher, error)
}

type analyticsReader interface {
	Aggregate(ctx context.Context, sess *models.Session, filter models.ReportFilter) (*dto.AggregateTable, bool, error)
	Analysis(ctx context.Context, sess *models.Session, filter models.ReportFilter) ([]dto.CriterionAnalysis, bool, error)
	Performance(ctx context.Context, sess *models.Session, filter models.ReportFilter) (*dto.PerformanceSummary, bool, error)
}

type coverageReader interface {
	ListCoverage(ctx context.Context, sess *models.Session) ([]models.SyllabusCoverageReport, error)
}

type taskReader interface {
	List(ctx context.Context, sess *models.Session) ([]models.Task, error)
}

type meetingReader interface {
	List(ctx context.Context, sess *models.Session) ([]models.Meeting, error)
}

type exportRecorder interface {
	RecordExport(format string)
}

// ExportSources groups the read sides datasets are built from.
type ExportSources struct {
	Reports   reportReader
	Teachers  teacherReader
	Analytics analyticsReader
	Coverage  coverageReader
	Tasks     taskReader
	Meetings  meetingReader
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportRequest selects a dataset and a sink. Persist stores the rendered
// file and returns a signed download link.
type ExportRequest struct {
	Kind     string              `json:"kind" validate:"required,oneof=report aggregate analysis performance coverage tasks meetings"`
	Format   export.Format       `json:"format" validate:"required,oneof=txt csv pdf xlsx share"`
	ReportID string              `json:"reportId" validate:"required_if=Kind report"`
	Filter   models.ReportFilter `json:"filter"`
	Persist  bool                `json:"persist"`
}

// ExportResult carries the rendered document or its share URL.
type ExportResult struct {
	Format      export.Format `json:"format"`
	Filename    string        `json:"filename"`
	ContentType string        `json:"contentType"`
	Content     []byte        `json:"-"`
	ShareURL    string        `json:"shareUrl,omitempty"`
	Token       string        `json:"token,omitempty"`
	URL         string        `json:"url,omitempty"`
	ExpiresAt   *time.Time    `json:"expiresAt,omitempty"`
}

// ExportService builds datasets from scoped views and renders them through the sink registry.
type ExportService struct {
	sources   ExportSources
	renderer  exportRenderer
	storage   fileStorage
	signer    *storage.SignedURLSigner
	metrics   exportRecorder
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService. storage and signer may be nil,
// in which case Persist requests fail.
func NewExportService(sources ExportSources, renderer exportRenderer, files fileStorage, signer *storage.SignedURLSigner, metrics exportRecorder, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if renderer == nil {
		renderer = export.NewRegistry(export.Options{})
	}
	return &ExportService{
		sources:   sources,
		renderer:  renderer,
		storage:   files,
		signer:    signer,
		metrics:   metrics,
		validator: validator.New(),
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Export renders the requested dataset.
func (s *ExportService) Export(ctx context.Context, sess *models.Session, req ExportRequest) (*ExportResult, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid export request")
	}
	dataset, err := s.buildDataset(ctx, sess, req)
	if err != nil {
		return nil, err
	}
	payload, err := s.renderer.Render(req.Format, dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	if s.metrics != nil {
		s.metrics.RecordExport(string(req.Format))
	}

	if req.Format == export.FormatShare {
		return &ExportResult{Format: req.Format, ContentType: "text/plain; charset=utf-8", ShareURL: string(payload), Content: payload}, nil
	}
	result := &ExportResult{
		Format:      req.Format,
		Filename:    s.filename(req.Kind, req.Format),
		ContentType: export.ContentType(req.Format),
		Content:     payload,
	}
	if !req.Persist {
		return result, nil
	}
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export storage is not configured")
	}
	relPath, err := s.storage.Save(result.Filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(newID(), relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	result.Token = token
	result.URL = fmt.Sprintf("%s/exports/download/%s", prefix, token)
	result.ExpiresAt = &expiresAt
	s.logger.Info("export stored", zap.String("kind", req.Kind), zap.String("format", string(req.Format)), zap.String("path", relPath))
	return result, nil
}

// Download resolves a signed token to the stored document.
func (s *ExportService) Download(ctx context.Context, token string) (*ExportResult, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	_, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired export link")
	}
	payload, err := s.storage.Read(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found")
	}
	format := export.Format(strings.TrimPrefix(filepath.Ext(relPath), "."))
	return &ExportResult{
		Format:      format,
		Filename:    filepath.Base(relPath),
		ContentType: export.ContentType(format),
		Content:     payload,
	}, nil
}

// Cleanup removes stored files older than ttl, or the configured TTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if s.storage == nil {
		return nil, nil
	}
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (s *ExportService) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Cleanup(0)
			if err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				s.logger.Info("export cleanup", zap.Int("removed", len(removed)))
			}
		}
	}
}

func (s *ExportService) filename(kind string, format export.Format) string {
	return fmt.Sprintf("%s_%s_%s.%s", kind, s.now().UTC().Format("20060102_150405"), newID()[:8], format)
}

func (s *ExportService) buildDataset(ctx context.Context, sess *models.Session, req ExportRequest) (export.Dataset, error) {
	switch req.Kind {
	case ExportReport:
		return s.reportDataset(ctx, sess, req.ReportID)
	case ExportAggregate:
		table, _, err := s.sources.Analytics.Aggregate(ctx, sess, req.Filter)
		if err != nil {
			return export.Dataset{}, err
		}
		return aggregateDataset(table), nil
	case ExportAnalysis:
		rows, _, err := s.sources.Analytics.Analysis(ctx, sess, req.Filter)
		if err != nil {
			return export.Dataset{}, err
		}
		return analysisDataset(rows), nil
	case ExportPerformance:
		perf, _, err := s.sources.Analytics.Performance(ctx, sess, req.Filter)
		if err != nil {
			return export.Dataset{}, err
		}
		return performanceDataset(perf), nil
	case ExportCoverage:
		reports, err := s.sources.Coverage.ListCoverage(ctx, sess)
		if err != nil {
			return export.Dataset{}, err
		}
		return coverageDataset(reports), nil
	case ExportTasks:
		tasks, err := s.sources.Tasks.List(ctx, sess)
		if err != nil {
			return export.Dataset{}, err
		}
		return tasksDataset(tasks), nil
	case ExportMeetings:
		meetings, err := s.sources.Meetings.List(ctx, sess)
		if err != nil {
			return export.Dataset{}, err
		}
		return meetingsDataset(meetings), nil
	}
	return export.Dataset{}, appErrors.Clone(appErrors.ErrValidation, "unsupported export kind")
}

func (s *ExportService) reportDataset(ctx context.Context, sess *models.Session, id string) (export.Dataset, error) {
	view, err := s.sources.Reports.Get(ctx, sess, id)
	if err != nil {
		return export.Dataset{}, err
	}
	teacherName := view.TeacherID
	if t, err := s.sources.Teachers.Get(ctx, sess, view.TeacherID); err == nil {
		teacherName = t.Name
	}

	ds := export.Dataset{
		Title:   fmt.Sprintf("%s / %s / %s", teacherName, view.Date, view.EvaluationType),
		Headers: []string{"Section", "Criterion", "Score"},
	}
	addRows := func(section string, criteria []models.Criterion) {
		for _, c := range criteria {
			ds.Rows = append(ds.Rows, map[string]string{
				"Section":   section,
				"Criterion": c.Label,
				"Score":     fmt.Sprintf("%d/%d", c.Score, models.MaxCriterionScore),
			})
		}
	}
	if view.EvaluationType == models.EvaluationClassSession {
		for _, g := range view.CriterionGroups {
			addRows(g.Title, g.Criteria)
		}
	} else {
		addRows(view.TemplateName, view.Criteria)
	}

	ds.Notes = append(ds.Notes, fmt.Sprintf("Total: %.1f%% (%s)", Round1(view.Percentage), Band(view.Percentage)))
	for _, note := range []struct{ label, text string }{
		{"Positives", view.Positives},
		{"Notes for improvement", view.NotesForImprovement},
		{"Recommendations", view.Recommendations},
		{"Employee comment", view.EmployeeComment},
	} {
		if strings.TrimSpace(note.text) != "" {
			ds.Notes = append(ds.Notes, note.label+": "+note.text)
		}
	}
	return ds, nil
}

func aggregateDataset(table *dto.AggregateTable) export.Dataset {
	headers := append([]string{"Teacher", "Reports"}, table.Columns...)
	headers = append(headers, "Total %")
	ds := export.Dataset{Title: "Aggregated reports", Headers: headers}
	for _, row := range table.Rows {
		name := row.TeacherName
		if name == "" {
			name = row.TeacherID
		}
		values := map[string]string{
			"Teacher": name,
			"Reports": fmt.Sprintf("%d", row.ReportCount),
			"Total %": fmt.Sprintf("%.1f", Round1(row.Percentage)),
		}
		for _, cell := range row.Criteria {
			if cell.Present {
				values[cell.Label] = fmt.Sprintf("%.2f", cell.Mean)
			}
		}
		ds.Rows = append(ds.Rows, values)
	}
	footer := map[string]string{"Teacher": "Average", "Total %": fmt.Sprintf("%.1f", Round1(table.OverallPercentage))}
	for _, cell := range table.Footer {
		if cell.Present {
			footer[cell.Label] = fmt.Sprintf("%.2f", cell.Mean)
		}
	}
	ds.Rows = append(ds.Rows, footer)
	return ds
}

func analysisDataset(rows []dto.CriterionAnalysis) export.Dataset {
	ds := export.Dataset{Title: "Evaluation analysis", Headers: []string{"Criterion", "Occurrences", "Mean", "Percentage"}}
	for _, r := range rows {
		ds.Rows = append(ds.Rows, map[string]string{
			"Criterion":   r.Label,
			"Occurrences": fmt.Sprintf("%d", r.Occurrences),
			"Mean":        fmt.Sprintf("%.2f", r.MeanScore),
			"Percentage":  fmt.Sprintf("%.1f", Round1(r.Percentage)),
		})
	}
	return ds
}

func performanceDataset(perf *dto.PerformanceSummary) export.Dataset {
	ds := export.Dataset{Title: "Teacher performance", Headers: []string{"Teacher", "Reports", "Average %", "Band", "Latest"}}
	for _, t := range perf.Teachers {
		name := t.TeacherName
		if name == "" {
			name = t.TeacherID
		}
		ds.Rows = append(ds.Rows, map[string]string{
			"Teacher":   name,
			"Reports":   fmt.Sprintf("%d", t.ReportCount),
			"Average %": fmt.Sprintf("%.1f", Round1(t.Average)),
			"Band":      t.Band,
			"Latest":    t.LatestDate,
		})
	}
	ds.Notes = []string{fmt.Sprintf("Overall: %.1f%% over %d reports", Round1(perf.OverallAverage), perf.ReportCount)}
	return ds
}

func coverageDataset(reports []models.SyllabusCoverageReport) export.Dataset {
	ds := export.Dataset{Title: "Syllabus coverage", Headers: []string{"Date", "Teacher", "Subject", "Grade", "Last lesson", "Status", "Difference"}}
	for _, r := range reports {
		for _, e := range r.Entries {
			ds.Rows = append(ds.Rows, map[string]string{
				"Date":        r.Date,
				"Teacher":     r.TeacherID,
				"Subject":     e.Subject,
				"Grade":       e.Grade,
				"Last lesson": e.LastLesson,
				"Status":      string(e.Status),
				"Difference":  fmt.Sprintf("%d", e.LessonDifference),
			})
		}
	}
	return ds
}

func tasksDataset(tasks []models.Task) export.Dataset {
	ds := export.Dataset{Title: "Tasks", Headers: []string{"Title", "Due", "Status", "Notes"}}
	for _, t := range tasks {
		ds.Rows = append(ds.Rows, map[string]string{
			"Title":  t.Title,
			"Due":    t.DueDate,
			"Status": string(t.Status),
			"Notes":  t.Notes,
		})
	}
	return ds
}

func meetingsDataset(meetings []models.Meeting) export.Dataset {
	ds := export.Dataset{Title: "Meetings", Headers: []string{"Subject", "Date", "Attendees", "Outcomes", "Status"}}
	for _, m := range meetings {
		outcomes := make([]string, 0, len(m.Outcomes))
		for _, o := range m.Outcomes {
			outcomes = append(outcomes, fmt.Sprintf("%s (%d%%)", o.Description, o.CompletionPercentage))
		}
		ds.Rows = append(ds.Rows, map[string]string{
			"Subject":   m.Subject,
			"Date":      m.Date,
			"Attendees": strings.Join(m.Attendees, ", "),
			"Outcomes":  strings.Join(outcomes, "; "),
			"Status":    string(m.Status),
		})
	}
	return ds
}
