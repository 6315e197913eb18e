package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/avaliaedu/avalia-backend/internal/ingest"
	"github.com/avaliaedu/avalia-backend/internal/repos"
	"github.com/avaliaedu/avalia-backend/internal/types"
)

type stubRunner struct {
	launched []uuid.UUID
	table    *ingest.Table
	cycle    string
}

func (s *stubRunner) Launch(jobID uuid.UUID, table *ingest.Table, cycle string) {
	s.launched = append(s.launched, jobID)
	s.table = table
	s.cycle = cycle
}

const uploadCSV = `POLO;ESCOLA;TURMA;ALUNO;SERIE;Q1;Q2;MEDIA
Polo Norte;EMEIF São José;2º ANO A;Maria da Silva;2º ANO;1;0;6,5
Polo Norte;EMEIF São José;2º ANO A;João Pedro;2º ANO;1;1;8,0
`

func newImportService(t *testing.T) (ImportService, *stubRunner, repos.ImportJobRepo) {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger()
	jobRepo := repos.NewImportJobRepo(db, log)
	runner := &stubRunner{}
	return NewImportService(log, jobRepo, runner), runner, jobRepo
}

func TestSubmitQueuesJob(t *testing.T) {
	svc, runner, jobRepo := newImportService(t)
	ctx := context.Background()

	job, err := svc.Submit(ctx, "resultados.csv", strings.NewReader(uploadCSV), "2024-1", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != types.JobStatusQueued {
		t.Fatalf("status = %s, want queued", job.Status)
	}
	if job.TotalRows != 2 {
		t.Fatalf("total rows = %d, want 2", job.TotalRows)
	}
	if len(runner.launched) != 1 || runner.launched[0] != job.ID {
		t.Fatalf("runner launched with %v, want [%s]", runner.launched, job.ID)
	}
	if runner.cycle != "2024-1" || len(runner.table.Rows) != 2 {
		t.Fatalf("runner got cycle=%q rows=%d", runner.cycle, len(runner.table.Rows))
	}

	stored, err := jobRepo.GetByID(ctx, nil, job.ID)
	if err != nil || stored == nil {
		t.Fatalf("stored job: %v", err)
	}
	if stored.FileName != "resultados.csv" || stored.Cycle != "2024-1" {
		t.Fatalf("stored job = %+v", stored)
	}
}

func TestSubmitRejectsBadUploads(t *testing.T) {
	svc, runner, _ := newImportService(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		fileName string
		body     string
		cycle    string
		wantErr  error
	}{
		{name: "unsupported_extension", fileName: "dados.pdf", body: uploadCSV, cycle: "2024-1", wantErr: ingest.ErrUnsupportedFormat},
		{name: "no_data_rows", fileName: "vazio.csv", body: "POLO;ESCOLA;ALUNO;SERIE\n", cycle: "2024-1", wantErr: ErrEmptyUpload},
		{name: "missing_columns", fileName: "dados.csv", body: "COLUNA A;COLUNA B\nx;y\n", cycle: "2024-1", wantErr: ErrMissingColumns},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tc.fileName, strings.NewReader(tc.body), tc.cycle, nil)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
	if len(runner.launched) != 0 {
		t.Fatalf("rejected uploads must not launch jobs, got %v", runner.launched)
	}
}

func TestStatusTransitions(t *testing.T) {
	svc, _, jobRepo := newImportService(t)
	ctx := context.Background()

	job := &types.ImportJob{Cycle: "2024-1", Status: types.JobStatusQueued}
	if err := jobRepo.Create(ctx, nil, job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	// Pausing a queued job is not allowed.
	if ok, err := svc.Pause(ctx, job.ID); err != nil || ok {
		t.Fatalf("Pause on queued: ok=%v err=%v, want no-op", ok, err)
	}

	if ok, err := jobRepo.SetStatusIf(ctx, nil, job.ID, []string{types.JobStatusQueued}, types.JobStatusProcessing); err != nil || !ok {
		t.Fatalf("move to processing: ok=%v err=%v", ok, err)
	}
	if ok, err := svc.Pause(ctx, job.ID); err != nil || !ok {
		t.Fatalf("Pause on processing: ok=%v err=%v", ok, err)
	}
	if ok, err := svc.Resume(ctx, job.ID); err != nil || !ok {
		t.Fatalf("Resume on paused: ok=%v err=%v", ok, err)
	}
	if ok, err := svc.Cancel(ctx, job.ID); err != nil || !ok {
		t.Fatalf("Cancel on processing: ok=%v err=%v", ok, err)
	}
	// Terminal states never leave.
	if ok, err := svc.Resume(ctx, job.ID); err != nil || ok {
		t.Fatalf("Resume on cancelled: ok=%v err=%v, want no-op", ok, err)
	}
	got, _ := jobRepo.GetByID(ctx, nil, job.ID)
	if got.Status != types.JobStatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
}
