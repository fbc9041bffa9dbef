package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grading-api/internal/models"
	"github.com/noah-isme/sma-grading-api/internal/repository"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
	"github.com/noah-isme/sma-grading-api/pkg/jobs"
	"github.com/noah-isme/sma-grading-api/pkg/storage"
)

type mockExportJobs struct {
	mu   sync.Mutex
	jobs map[string]*models.ExportJob
}

func newMockExportJobs() *mockExportJobs {
	return &mockExportJobs{jobs: map[string]*models.ExportJob{}}
}

func (m *mockExportJobs) Create(ctx context.Context, job *models.ExportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.ID = "job-1"
	job.CreatedAt = time.Now().UTC()
	copyJob := *job
	m.jobs[job.ID] = &copyJob
	return nil
}

func (m *mockExportJobs) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, errNoRowsWrapped
	}
	copyJob := *job
	return &copyJob, nil
}

func (m *mockExportJobs) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[id]
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *mockExportJobs) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.ExportJob{}
	for _, job := range m.jobs {
		if job.Status == models.ExportStatusQueued {
			out = append(out, *job)
		}
	}
	return out, nil
}

type recordingDispatcher struct {
	jobs []jobs.Job
	err  error
}

func (d *recordingDispatcher) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

type failingGenerator struct{}

func (failingGenerator) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	return nil, errors.New("render failed")
}

type exportFixture struct {
	svc        *ExportService
	worker     *ExportWorker
	jobs       *mockExportJobs
	dispatcher *recordingDispatcher
}

func newExportFixture(t *testing.T) *exportFixture {
	t.Helper()
	g := newGradingFixture()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	jobStore := newMockExportJobs()
	dispatcher := &recordingDispatcher{}
	svc := NewExportService(ExportDeps{
		Sheets:  g.svc,
		Classes: classFixture(),
		Jobs:    jobStore,
		Queue:   dispatcher,
		Storage: store,
		Signer:  storage.NewSignedURLSigner("secret", time.Hour),
		Metrics: NewMetricsService(),
	}, ExportConfig{APIPrefix: "/api/v1"}, nil)
	worker := NewExportWorker(jobStore, svc, nil, nil)
	return &exportFixture{svc: svc, worker: worker, jobs: jobStore, dispatcher: dispatcher}
}

func TestSheetDatasetColumns(t *testing.T) {
	g := newGradingFixture()
	sheet, err := g.svc.BuildSheet(context.Background(), "class-1", "prelim")
	require.NoError(t, err)

	data := SheetDataset(&models.Class{Name: "Math 10 - A"}, sheet)
	assert.Equal(t, "Grade Sheet Math 10 - A", data.Title)
	assert.Equal(t, []string{
		"No", "Student Number", "Student Name",
		"Quizzes (40%)", "Exam (60%)",
		"Prelim [30%]", "Midterm [30%]", "Finals [40%]",
		"Overall", "Remarks", "Standing",
	}, data.Headers)
	require.Len(t, data.Rows, 2)
	ana := data.Rows[0]
	assert.Equal(t, "Ana", ana["Student Name"])
	assert.Equal(t, "1.50", ana["Quizzes (40%)"])
	assert.Equal(t, "2.25", ana["Exam (60%)"])
	assert.Equal(t, "1.95", ana["Prelim [30%]"])
	assert.Equal(t, "5.00", ana["Finals [40%]"])
	assert.Equal(t, "3.25", ana["Overall"])
	assert.Equal(t, "FAILED", ana["Remarks"])
	assert.Equal(t, "INC", data.Rows[1]["Prelim [30%]"])
	assert.Contains(t, data.Subtitle, "Prelim")
}

func TestExportServiceRenderCSV(t *testing.T) {
	f := newExportFixture(t)

	file, err := f.svc.Render(context.Background(), teacherActor, "class-1", "prelim", models.ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasPrefix(file.Filename, "Math_10_-_A_prelim_"))
	assert.True(t, strings.HasSuffix(file.Filename, ".csv"))
	assert.Contains(t, string(file.Data), "Ana")

	_, err = f.svc.Render(context.Background(), teacherActor, "class-1", "prelim", models.ExportFormat("xlsx"))
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Render(context.Background(), otherTeacher, "class-1", "prelim", models.ExportFormatCSV)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportJobLifecycle(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()

	job, err := f.svc.CreateJob(ctx, teacherActor, "class-1", "prelim", models.ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, job.Status)
	require.Len(t, f.dispatcher.jobs, 1)

	require.NoError(t, f.worker.Handle(ctx, f.dispatcher.jobs[0]))
	stored, err := f.svc.GetJob(ctx, teacherActor, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.ResultURL)
	assert.True(t, strings.HasPrefix(*stored.ResultURL, "/api/v1/exports/download/"))

	token := (*stored.ResultURL)[strings.LastIndex(*stored.ResultURL, "/")+1:]
	download, err := f.svc.ResolveDownload(ctx, token)
	require.NoError(t, err)
	defer download.File.Close() //nolint:errcheck
	assert.Equal(t, "application/pdf", download.ContentType)
	payload, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))

	_, err = f.svc.ResolveDownload(ctx, token+"x")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.GetJob(ctx, otherTeacher, job.ID)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportWorkerFailureRequeuesThenExhausts(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	job, err := f.svc.CreateJob(ctx, adminActor, "class-1", "prelim", models.ExportFormatCSV)
	require.NoError(t, err)

	worker := NewExportWorker(f.jobs, failingGenerator{}, nil, nil)
	err = worker.Handle(ctx, jobs.Job{ID: job.ID})
	require.Error(t, err)
	stored, _ := f.jobs.GetByID(ctx, job.ID)
	assert.Equal(t, models.ExportStatusQueued, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "render failed", *stored.ErrorMessage)

	f.svc.HandleExhausted(ctx, jobs.Job{ID: job.ID}, err)
	stored, _ = f.jobs.GetByID(ctx, job.ID)
	assert.Equal(t, models.ExportStatusFailed, stored.Status)
	assert.NotNil(t, stored.FinishedAt)
}

func TestExportServiceEnqueueFailureMarksJobFailed(t *testing.T) {
	f := newExportFixture(t)
	f.dispatcher.err = errors.New("queue stopped")

	_, err := f.svc.CreateJob(context.Background(), adminActor, "class-1", "prelim", models.ExportFormatCSV)
	require.Error(t, err)
	stored, _ := f.jobs.GetByID(context.Background(), "job-1")
	assert.Equal(t, models.ExportStatusFailed, stored.Status)
}

func TestExportServiceRecoverPendingJobs(t *testing.T) {
	f := newExportFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateJob(ctx, adminActor, "class-1", "prelim", models.ExportFormatCSV)
	require.NoError(t, err)

	f.svc.RecoverPendingJobs(ctx)
	assert.Len(t, f.dispatcher.jobs, 2)
}
