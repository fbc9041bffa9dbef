package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-api/internal/models"
	"github.com/noah-isme/sma-grading-api/internal/repository"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
	"github.com/noah-isme/sma-grading-api/pkg/export"
	"github.com/noah-isme/sma-grading-api/pkg/jobs"
	"github.com/noah-isme/sma-grading-api/pkg/storage"
)

type sheetSource interface {
	Sheet(ctx context.Context, actor *models.JWTClaims, classID, termID string) (*models.GradeSheet, bool, error)
	BuildSheet(ctx context.Context, classID, termID string) (*models.GradeSheet, error)
}

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

const exportJobType = "grade_sheet_export"

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportDeps groups ExportService collaborators. Queue may be nil until the
// worker pool is wired; async jobs are rejected without it.
type ExportDeps struct {
	Sheets  sheetSource
	Classes classReader
	Jobs    exportJobStore
	Queue   jobDispatcher
	Storage fileStorage
	Signer  *storage.SignedURLSigner
	CSV     datasetRenderer
	PDF     datasetRenderer
	Metrics *MetricsService
}

// ExportFile is a rendered export returned inline.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportResult captures a stored export.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	ExpiresAt    time.Time
}

// ExportDownload is a resolved signed download.
type ExportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

// ExportService renders grade sheets to CSV or PDF, inline or as background jobs.
type ExportService struct {
	deps   ExportDeps
	cfg    ExportConfig
	logger *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(deps ExportDeps, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if deps.CSV == nil {
		deps.CSV = export.NewCSVExporter()
	}
	if deps.PDF == nil {
		deps.PDF = export.NewPDFExporter()
	}
	return &ExportService{deps: deps, cfg: cfg, logger: logger}
}

// Render builds the grade sheet and renders it for immediate download.
func (s *ExportService) Render(ctx context.Context, actor *models.JWTClaims, classID, termID string, format models.ExportFormat) (*ExportFile, error) {
	renderer, err := s.renderer(format)
	if err != nil {
		return nil, err
	}
	sheet, _, err := s.deps.Sheets.Sheet(ctx, actor, classID, termID)
	if err != nil {
		return nil, err
	}
	class, err := s.deps.Classes.FindByID(ctx, classID)
	if err != nil {
		return nil, mapMissing(err, "class not found", "failed to load class")
	}
	payload, err := renderer.Render(SheetDataset(class, sheet))
	if err != nil {
		s.deps.Metrics.RecordExport(string(format), "failed")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.deps.Metrics.RecordExport(string(format), "inline")
	return &ExportFile{Filename: exportFilename(class, sheet.TermID, format), ContentType: renderer.ContentType(), Data: payload}, nil
}

// CreateJob persists an export job and hands it to the worker pool.
func (s *ExportService) CreateJob(ctx context.Context, actor *models.JWTClaims, classID, termID string, format models.ExportFormat) (*models.ExportJob, error) {
	if _, err := s.renderer(format); err != nil {
		return nil, err
	}
	if _, err := loadClass(ctx, s.deps.Classes, classID, actor); err != nil {
		return nil, err
	}
	if s.deps.Queue == nil || s.deps.Jobs == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "background exports are disabled")
	}
	job := &models.ExportJob{
		ClassID:   classID,
		TermID:    termID,
		Format:    format,
		Status:    models.ExportStatusQueued,
		CreatedBy: actor.UserID,
	}
	if err := s.deps.Jobs.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.deps.Queue.Enqueue(jobs.Job{ID: job.ID, Type: exportJobType}); err != nil {
		s.markFailed(ctx, job.ID, "failed to enqueue job")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	s.deps.Metrics.RecordExport(string(format), strings.ToLower(string(models.ExportStatusQueued)))
	return job, nil
}

// GetJob returns job metadata. Teachers only see their own jobs.
func (s *ExportService) GetJob(ctx context.Context, actor *models.JWTClaims, id string) (*models.ExportJob, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	job, err := s.deps.Jobs.GetByID(ctx, id)
	if err != nil {
		return nil, mapMissing(err, "export job not found", "failed to load export job")
	}
	if !actor.Role.IsAdmin() && job.CreatedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export job belongs to another user")
	}
	return job, nil
}

// Generate renders a job's grade sheet and stores it behind a signed URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	renderer, err := s.renderer(job.Format)
	if err != nil {
		return nil, err
	}
	class, err := s.deps.Classes.FindByID(ctx, job.ClassID)
	if err != nil {
		return nil, err
	}
	sheet, err := s.deps.Sheets.BuildSheet(ctx, job.ClassID, job.TermID)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(SheetDataset(class, sheet))
	if err != nil {
		return nil, err
	}
	relPath, err := s.deps.Storage.Save(job.ID+"_"+exportFilename(class, job.TermID, job.Format), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.deps.Signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download/%s", prefix, token),
		ExpiresAt:    expiresAt,
	}, nil
}

// ResolveDownload validates a signed token and opens the stored file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	link, err := s.deps.Signer.Parse(token, false)
	if errors.Is(err, storage.ErrTokenExpired) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
	}
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download token")
	}
	job, err := s.deps.Jobs.GetByID(ctx, link.JobID)
	if err != nil {
		return nil, mapMissing(err, "export job not found", "failed to load export job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	file, err := s.deps.Storage.Open(link.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export file expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	renderer, _ := s.renderer(job.Format)
	contentType := "application/octet-stream"
	if renderer != nil {
		contentType = renderer.ContentType()
	}
	return &ExportDownload{File: file, Filename: filepath.Base(link.Path), ContentType: contentType, ExpiresAt: link.ExpiresAt}, nil
}

// RecoverPendingJobs re-enqueues queued jobs after a restart.
func (s *ExportService) RecoverPendingJobs(ctx context.Context) {
	if s.deps.Queue == nil || s.deps.Jobs == nil {
		return
	}
	pending, err := s.deps.Jobs.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued export jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.deps.Queue.Enqueue(jobs.Job{ID: job.ID, Type: exportJobType}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue pending export job", "job_id", job.ID, "error", err)
		}
	}
}

// StartCleanup purges stored exports older than the result TTL until ctx ends.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 || s.deps.Storage == nil {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}

// Cleanup removes expired export files once.
func (s *ExportService) Cleanup() []string {
	removed, err := s.deps.Storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Sugar().Warnw("export cleanup failed", "error", err)
		return nil
	}
	if len(removed) > 0 {
		s.logger.Sugar().Infow("expired exports removed", "count", len(removed))
	}
	return removed
}

// HandleExhausted marks a job FAILED once the queue gives up retrying it.
func (s *ExportService) HandleExhausted(ctx context.Context, job jobs.Job, err error) {
	s.markFailed(ctx, job.ID, err.Error())
}

func (s *ExportService) markFailed(ctx context.Context, jobID, message string) {
	status := models.ExportStatusFailed
	progress := 100
	now := time.Now().UTC()
	if err := s.deps.Jobs.Update(ctx, jobID, repository.UpdateExportJobParams{
		Status:       &status,
		Progress:     &progress,
		ErrorMessage: &message,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Sugar().Warnw("failed to mark export job failed", "job_id", jobID, "error", err)
	}
	s.deps.Metrics.RecordExport("", strings.ToLower(string(status)))
}

func (s *ExportService) renderer(format models.ExportFormat) (datasetRenderer, error) {
	switch format {
	case models.ExportFormatCSV:
		return s.deps.CSV, nil
	case models.ExportFormatPDF:
		return s.deps.PDF, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// SheetDataset flattens a grade sheet into export rows: one row per student
// with the edited term's criteria, every term, and the overall result.
func SheetDataset(class *models.Class, sheet *models.GradeSheet) export.Dataset {
	headers := []string{"No", "Student Number", "Student Name"}
	used := map[string]int{}
	unique := func(name string) string {
		used[name]++
		if used[name] > 1 {
			return fmt.Sprintf("%s #%d", name, used[name])
		}
		return name
	}
	for _, h := range headers {
		used[h] = 1
	}

	criterionCols := make(map[string]string, len(sheet.Criteria))
	for _, c := range sheet.Criteria {
		col := unique(fmt.Sprintf("%s (%g%%)", c.Name, c.WeightPercent))
		criterionCols[c.ID] = col
		headers = append(headers, col)
	}
	termCols := make(map[string]string, len(sheet.Terms))
	var editedTerm string
	for _, t := range sheet.Terms {
		col := unique(fmt.Sprintf("%s [%g%%]", t.Name, t.WeightPercent))
		termCols[t.ID] = col
		headers = append(headers, col)
		if t.ID == sheet.TermID {
			editedTerm = t.Name
		}
	}
	overallCol, remarksCol, labelCol := unique("Overall"), unique("Remarks"), unique("Standing")
	headers = append(headers, overallCol, remarksCol, labelCol)

	rows := make([]map[string]string, 0, len(sheet.Students))
	for i, student := range sheet.Students {
		row := map[string]string{
			"No":             fmt.Sprintf("%d", i+1),
			"Student Number": student.StudentNumber,
			"Student Name":   student.StudentName,
			overallCol:       student.Result.Display,
			remarksCol:       student.Result.Remarks.Display,
			labelCol:         student.Result.Remarks.Label,
		}
		for _, term := range student.Result.Terms {
			row[termCols[term.TermID]] = term.Display
			if term.TermID != sheet.TermID {
				continue
			}
			for _, category := range term.Categories {
				if col, ok := criterionCols[category.CategoryID]; ok {
					row[col] = fmt.Sprintf("%.2f", category.GradePoint)
				}
			}
		}
		rows = append(rows, row)
	}

	subtitle := fmt.Sprintf("%s | generated %s", editedTerm, sheet.GeneratedAt.UTC().Format(time.RFC3339))
	if !sheet.CriteriaWeights.Balanced {
		subtitle += fmt.Sprintf(" | criteria weights total %.2f%%", sheet.CriteriaWeights.Total)
	}
	if !sheet.TermWeights.Balanced {
		subtitle += fmt.Sprintf(" | term weights total %.2f%%", sheet.TermWeights.Total)
	}
	title := "Grade Sheet"
	if class != nil {
		title = fmt.Sprintf("Grade Sheet %s", class.Name)
	}
	return export.Dataset{Title: title, Subtitle: subtitle, Headers: headers, Rows: rows}
}

func exportFilename(class *models.Class, termID string, format models.ExportFormat) string {
	name := "class"
	if class != nil {
		name = class.Name
	}
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s.%s", sanitizeFilename(name), sanitizeFilename(termID), timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

// ExportWorker bridges queue jobs to ExportService.
type ExportWorker struct {
	jobs     exportJobStore
	exporter exportGenerator
	metrics  *MetricsService
	logger   *zap.Logger
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error)
}

// NewExportWorker constructs a worker.
func NewExportWorker(jobStore exportJobStore, exporter exportGenerator, metrics *MetricsService, logger *zap.Logger) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportWorker{jobs: jobStore, exporter: exporter, metrics: metrics, logger: logger}
}

// Handle processes a queue job. Failures return the job to QUEUED; the queue
// retries and finally reports exhaustion to ExportService.HandleExhausted.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.jobs.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.ExportStatusProcessing
	progress := 10
	if err := w.jobs.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &processing, Progress: &progress}); err != nil {
		return err
	}
	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		queued := models.ExportStatusQueued
		reset := 0
		if updateErr := w.jobs.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &queued, Progress: &reset, ErrorMessage: &msg}); updateErr != nil {
			w.logger.Sugar().Warnw("failed to mark export job queued", "job_id", job.ID, "error", updateErr)
		}
		return err
	}
	finished := models.ExportStatusFinished
	progress = 100
	now := time.Now().UTC()
	url := result.URL
	clear := ""
	if err := w.jobs.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &finished,
		Progress:     &progress,
		ResultURL:    &url,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark export job finished", "job_id", job.ID, "error", err)
		return err
	}
	w.metrics.RecordExport(string(record.Format), strings.ToLower(string(finished)))
	return nil
}
