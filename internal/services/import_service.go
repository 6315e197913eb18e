package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/avaliaedu/avalia-backend/internal/ingest"
	"github.com/avaliaedu/avalia-backend/internal/platform/logger"
	"github.com/avaliaedu/avalia-backend/internal/repos"
	"github.com/avaliaedu/avalia-backend/internal/types"
)

var (
	ErrEmptyUpload    = errors.New("upload has no data rows")
	ErrMissingColumns = errors.New("upload is missing required columns")
)

// JobRunner executes a queued import in the background; the import service
// only knows how to hand a parsed table off to it.
type JobRunner interface {
	Launch(jobID uuid.UUID, table *ingest.Table, cycle string)
}

type ImportService interface {
	// Submit parses the upload synchronously (structural problems are
	// reported before any job exists), creates a queued job and hands it to
	// the runner.
	Submit(ctx context.Context, fileName string, file io.Reader, cycle string, operatorID *uuid.UUID) (*types.ImportJob, error)
	Get(ctx context.Context, id uuid.UUID) (*types.ImportJob, error)
	List(ctx context.Context, limit int) ([]*types.ImportJob, error)
	// Pause/Resume/Cancel write the requested status; the running job picks
	// the change up at its next checkpoint. Each reports whether the
	// transition applied (false when the job was in an incompatible state).
	Pause(ctx context.Context, id uuid.UUID) (bool, error)
	Resume(ctx context.Context, id uuid.UUID) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
}

type importService struct {
	log    *logger.Logger
	jobs   repos.ImportJobRepo
	runner JobRunner
}

func NewImportService(baseLog *logger.Logger, jobs repos.ImportJobRepo, runner JobRunner) ImportService {
	return &importService{
		log:    baseLog.With("service", "ImportService"),
		jobs:   jobs,
		runner: runner,
	}
}

func (s *importService) Submit(ctx context.Context, fileName string, file io.Reader, cycle string, operatorID *uuid.UUID) (*types.ImportJob, error) {
	cycle = strings.TrimSpace(cycle)
	if cycle == "" {
		return nil, fmt.Errorf("cycle is required")
	}
	table, err := ingest.ParseUpload(fileName, file)
	if err != nil {
		return nil, err
	}
	if len(table.Rows) == 0 {
		return nil, ErrEmptyUpload
	}
	var missing []string
	for _, f := range []ingest.Field{ingest.FieldSchool, ingest.FieldStudent, ingest.FieldGrade} {
		if !table.Recognized[f] {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	job := &types.ImportJob{
		OperatorID: operatorID,
		Cycle:      cycle,
		Status:     types.JobStatusQueued,
		FileName:   fileName,
		TotalRows:  len(table.Rows),
	}
	if err := s.jobs.Create(ctx, nil, job); err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}
	s.log.Info("import accepted",
		"job_id", job.ID,
		"file", fileName,
		"cycle", cycle,
		"rows", job.TotalRows)
	s.runner.Launch(job.ID, table, cycle)
	return job, nil
}

func (s *importService) Get(ctx context.Context, id uuid.UUID) (*types.ImportJob, error) {
	return s.jobs.GetByID(ctx, nil, id)
}

func (s *importService) List(ctx context.Context, limit int) ([]*types.ImportJob, error) {
	return s.jobs.List(ctx, nil, limit)
}

func (s *importService) Pause(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.jobs.SetStatusIf(ctx, nil, id, []string{types.JobStatusProcessing}, types.JobStatusPaused)
}

func (s *importService) Resume(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.jobs.SetStatusIf(ctx, nil, id, []string{types.JobStatusPaused}, types.JobStatusProcessing)
}

func (s *importService) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.jobs.SetStatusIf(ctx, nil, id,
		[]string{types.JobStatusQueued, types.JobStatusProcessing, types.JobStatusPaused},
		types.JobStatusCancelled)
}
