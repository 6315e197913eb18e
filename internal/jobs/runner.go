// Package jobs runs imports in the background: one goroutine per accepted
// upload, driving resolution, scoring and persistence, with progress
// checkpoints that double as the pause/cancel reaction points.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/avaliaedu/avalia-backend/internal/calc"
	"github.com/avaliaedu/avalia-backend/internal/gradecfg"
	"github.com/avaliaedu/avalia-backend/internal/ingest"
	"github.com/avaliaedu/avalia-backend/internal/platform/logger"
	"github.com/avaliaedu/avalia-backend/internal/repos"
	"github.com/avaliaedu/avalia-backend/internal/services"
	"github.com/avaliaedu/avalia-backend/internal/types"
)

type Config struct {
	// PollInterval is how often the watcher re-reads the job record and how
	// often a paused run re-checks for resume.
	PollInterval time.Duration
	// PauseTimeout bounds how long a run stays paused before cancelling
	// itself.
	PauseTimeout time.Duration
	// CheckpointFloor is the minimum number of rows between progress
	// checkpoints; larger files checkpoint roughly every tenth.
	CheckpointFloor int
}

func DefaultConfig() Config {
	return Config{
		PollInterval:    2 * time.Second,
		PauseTimeout:    30 * time.Minute,
		CheckpointFloor: 50,
	}
}

type Runner struct {
	log      *logger.Logger
	cfg      Config
	gradeCfg *gradecfg.Config

	jobs     repos.ImportJobRepo
	regions  repos.RegionRepo
	schools  repos.SchoolRepo
	classes  repos.ClassRepo
	students repos.StudentRepo

	catalog services.CatalogService
	persist services.PersistService

	wg sync.WaitGroup
}

func NewRunner(
	baseLog *logger.Logger,
	cfg Config,
	gradeCfg *gradecfg.Config,
	jobs repos.ImportJobRepo,
	regions repos.RegionRepo,
	schools repos.SchoolRepo,
	classes repos.ClassRepo,
	students repos.StudentRepo,
	catalog services.CatalogService,
	persist services.PersistService,
) *Runner {
	return &Runner{
		log:      baseLog.With("component", "JobRunner"),
		cfg:      cfg,
		gradeCfg: gradeCfg,
		jobs:     jobs,
		regions:  regions,
		schools:  schools,
		classes:  classes,
		students: students,
		catalog:  catalog,
		persist:  persist,
	}
}

// Launch starts the job in its own goroutine and returns immediately.
func (r *Runner) Launch(jobID uuid.UUID, table *ingest.Table, cycle string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(context.Background(), jobID, table, cycle)
	}()
}

// Wait blocks until every launched job has finished; used at shutdown.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) run(parent context.Context, jobID uuid.UUID, table *ingest.Table, cycle string) {
	log := r.log.With("job_id", jobID, "cycle", cycle)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("import run panicked", "panic", rec)
			r.markError(jobID, fmt.Sprintf("internal error: %v", rec), nil)
		}
	}()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	ok, err := r.jobs.SetStatusIf(ctx, nil, jobID, []string{types.JobStatusQueued}, types.JobStatusProcessing)
	if err != nil {
		log.Error("start transition failed", "error", err)
		return
	}
	if !ok {
		// Cancelled while still queued.
		log.Info("job no longer queued, not starting")
		return
	}
	now := time.Now()
	_ = r.jobs.UpdateFields(ctx, nil, jobID, map[string]interface{}{
		"started_at": &now,
		"total_rows": len(table.Rows),
	})

	ctl := &control{cancel: cancel}
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		r.watch(ctx, jobID, ctl)
	}()
	defer func() {
		cancel()
		<-watchDone
	}()

	catalog, err := r.catalog.Ensure(ctx)
	if err != nil {
		log.Error("catalog setup failed", "error", err)
		r.markError(jobID, fmt.Sprintf("catalog setup failed: %v", err), nil)
		return
	}

	resolver := services.NewResolver(r.log, r.regions, r.schools, r.classes, r.students, cycle)

	// First pass: resolve the unique region/school names up front so the
	// row loop mostly hits the run cache. Row-level problems (a new school
	// with no region, say) are reported from the row loop, not here.
	for _, row := range table.Rows {
		if row.Field(ingest.FieldSchool) == "" {
			continue
		}
		_, _ = resolver.ResolveSchool(ctx, nil, row.Field(ingest.FieldRegion), row.Field(ingest.FieldSchool))
		if ctx.Err() != nil {
			break
		}
	}

	codeSeq, err := r.students.MaxCode(ctx, nil)
	if err != nil {
		log.Error("student code seed failed", "error", err)
		r.markError(jobID, fmt.Sprintf("student code lookup failed: %v", err), nil)
		return
	}

	interval := len(table.Rows) / 10
	if interval < r.cfg.CheckpointFloor {
		interval = r.cfg.CheckpointFloor
	}
	if interval < 1 {
		interval = 1
	}

	queues := &services.Queues{}
	processed, errorRows := 0, 0
	var errLog []types.RowError
	recordErr := func(rowIndex int, reason string) {
		errorRows++
		if len(errLog) < types.MaxJobErrors {
			errLog = append(errLog, types.RowError{Row: rowIndex, Reason: reason})
		}
	}

	for i, row := range table.Rows {
		if ctx.Err() != nil {
			r.persistHalted(jobID, processed, errorRows, resolver, catalog, errLog)
			log.Info("import cancelled", "processed", processed)
			return
		}
		if i > 0 && i%interval == 0 {
			if !r.checkpoint(ctx, jobID, ctl, processed, errorRows, resolver, catalog, errLog) {
				r.persistHalted(jobID, processed, errorRows, resolver, catalog, errLog)
				log.Info("import cancelled at checkpoint", "processed", processed)
				return
			}
		}
		if err := r.processRow(ctx, row, resolver, catalog, queues); err != nil {
			recordErr(row.Index, err.Error())
		}
		processed++
	}

	if !r.checkpoint(ctx, jobID, ctl, processed, errorRows, resolver, catalog, errLog) {
		r.persistHalted(jobID, processed, errorRows, resolver, catalog, errLog)
		log.Info("import cancelled before flush", "processed", processed)
		return
	}

	stats, flushErr := r.persist.Flush(ctx, resolver, queues, &codeSeq)
	if flushErr != nil {
		if ctx.Err() != nil {
			r.persistHalted(jobID, processed, errorRows, resolver, catalog, errLog)
			log.Info("import cancelled during flush", "processed", processed)
			return
		}
		log.Error("persistence failed", "error", flushErr)
		r.markError(jobID, fmt.Sprintf("persistence failed: %v", flushErr),
			r.counterUpdates(processed, errorRows, resolver, catalog, errLog))
		return
	}
	for _, we := range stats.WriteErrors {
		recordErr(we.Row, we.Reason)
	}

	status := types.JobStatusCompleted
	if processed-errorRows <= 0 {
		status = types.JobStatusError
	}
	finished := time.Now()
	updates := r.counterUpdates(processed, errorRows, resolver, catalog, errLog)
	updates["status"] = status
	updates["finished_at"] = &finished
	updates["classes_created"] = stats.ClassesCreated
	updates["students_created"] = stats.StudentsCreated
	updates["students_existing"] = resolver.Counts.StudentsExisting + stats.StudentsExisting
	updates["results_created"] = stats.ResultsCreated
	updates["results_updated"] = stats.ResultsUpdated
	updates["item_rows_written"] = stats.ItemRowsWritten
	updates["production_rows_written"] = stats.ProductionRowsWritten
	updates["discarded_records"] = stats.DiscardedRecords

	bg, bgCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer bgCancel()
	applied, err := r.jobs.UpdateFieldsUnlessStatus(bg, nil, jobID, []string{types.JobStatusCancelled}, updates)
	if err != nil {
		log.Error("final job update failed", "error", err)
		return
	}
	if !applied {
		log.Info("job cancelled before completion write", "processed", processed)
		return
	}
	log.Info("import finished",
		"status", status,
		"processed", processed,
		"error_rows", errorRows,
		"results_created", stats.ResultsCreated,
		"results_updated", stats.ResultsUpdated)
}

// processRow resolves the row's hierarchy, scores it and queues its output
// records. The returned error is row-level: it marks this row failed without
// touching the rest of the run.
func (r *Runner) processRow(ctx context.Context, row ingest.Row, resolver *services.Resolver, catalog *services.Catalog, queues *services.Queues) error {
	grade, ok := r.gradeCfg.ByLabel(row.Field(ingest.FieldGrade))
	if !ok {
		return fmt.Errorf("unknown grade %q", row.Field(ingest.FieldGrade))
	}
	schoolID, err := resolver.ResolveSchool(ctx, nil, row.Field(ingest.FieldRegion), row.Field(ingest.FieldSchool))
	if err != nil {
		return err
	}
	classRef, hasClass, err := resolver.ResolveClass(ctx, nil, schoolID, row.Field(ingest.FieldClass))
	if err != nil {
		return err
	}
	studentRef, err := resolver.ResolveStudent(ctx, nil, schoolID, classRef, hasClass, row.Field(ingest.FieldStudent))
	if err != nil {
		return err
	}

	out := calc.Compute(row, grade)

	cons := types.ConsolidatedResult{
		Grade:          grade.Label,
		Attendance:     out.Attendance,
		AssessmentType: grade.AssessmentType,
		ExpectedItems:  grade.Questions(),
		CorrectLP:      out.CorrectLP,
		CorrectMT:      out.CorrectMT,
		ScoreLP:        out.ScoreLP,
		ScoreMT:        out.ScoreMT,
		Composite:      out.Composite,
		WritingScore:   out.WritingScore,
		WritingItem1:   out.WritingItems[0],
		WritingItem2:   out.WritingItems[1],
		WritingItem3:   out.WritingItems[2],
		WritingItem4:   out.WritingItems[3],
		WritingItem5:   out.WritingItems[4],
		WritingItem6:   out.WritingItems[5],
		WritingItem7:   out.WritingItems[6],
		WritingItem8:   out.WritingItems[7],
		TierLP:         out.TierLP,
		TierMT:         out.TierMT,
		TierComposite:  out.TierComposite,
	}
	if out.TierLP != nil {
		label := r.gradeCfg.TierLabel(*out.TierLP)
		cons.TierLPLabel = &label
	}
	if out.TierMT != nil {
		label := r.gradeCfg.TierLabel(*out.TierMT)
		cons.TierMTLabel = &label
	}
	if out.TierComposite != nil {
		label := r.gradeCfg.TierLabel(*out.TierComposite)
		cons.TierCompositeLabel = &label
	}
	queues.Consolidated = append(queues.Consolidated, &services.ConsolidatedDraft{
		SourceRow: row.Index,
		Student:   studentRef,
		Row:       cons,
	})

	for _, it := range out.Items {
		questionID, ok := catalog.QuestionByNumber[it.Question]
		if !ok {
			continue
		}
		queues.Items = append(queues.Items, &services.ItemRecordDraft{
			SourceRow:  row.Index,
			Student:    studentRef,
			QuestionID: questionID,
			Answer:     it.Answer,
			Correct:    it.Correct,
			Point:      it.Point,
		})
	}
	for _, p := range out.Productions {
		itemID, ok := catalog.ProductionByOrder[p.Item]
		if !ok {
			continue
		}
		queues.Productions = append(queues.Productions, &services.ProductionRecordDraft{
			SourceRow: row.Index,
			Student:   studentRef,
			ItemID:    itemID,
			Score:     p.Score,
		})
	}
	return nil
}

// checkpoint persists progress and honors an externally requested pause.
// It returns false when the run should halt.
func (r *Runner) checkpoint(ctx context.Context, jobID uuid.UUID, ctl *control, processed, errorRows int, resolver *services.Resolver, catalog *services.Catalog, errLog []types.RowError) bool {
	updates := r.counterUpdates(processed, errorRows, resolver, catalog, errLog)
	if _, err := r.jobs.UpdateFieldsUnlessStatus(ctx, nil, jobID, []string{types.JobStatusCancelled}, updates); err != nil {
		r.log.Warn("checkpoint write failed", "job_id", jobID, "error", err)
	}
	if !ctl.paused.Load() {
		return ctx.Err() == nil
	}

	r.log.Info("import paused", "job_id", jobID, "processed", processed)
	deadline := time.Now().Add(r.cfg.PauseTimeout)
	for ctl.paused.Load() {
		if ctx.Err() != nil {
			return false
		}
		if time.Now().After(deadline) {
			bg, bgCancel := context.WithTimeout(context.Background(), 10*time.Second)
			_, _ = r.jobs.SetStatusIf(bg, nil, jobID, []string{types.JobStatusPaused}, types.JobStatusCancelled)
			bgCancel()
			r.log.Warn("pause timed out, job cancelled", "job_id", jobID)
			return false
		}
		time.Sleep(r.cfg.PollInterval)
	}
	if ctx.Err() != nil {
		return false
	}
	r.log.Info("import resumed", "job_id", jobID, "processed", processed)
	return true
}

// persistHalted records counters for a cancelled run without touching the
// status column, so the processed count never regresses below the work
// actually done.
func (r *Runner) persistHalted(jobID uuid.UUID, processed, errorRows int, resolver *services.Resolver, catalog *services.Catalog, errLog []types.RowError) {
	bg, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	updates := r.counterUpdates(processed, errorRows, resolver, catalog, errLog)
	finished := time.Now()
	updates["finished_at"] = &finished
	if err := r.jobs.UpdateFields(bg, nil, jobID, updates); err != nil {
		r.log.Warn("halt write failed", "job_id", jobID, "error", err)
	}
}

func (r *Runner) markError(jobID uuid.UUID, reason string, updates map[string]interface{}) {
	bg, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if updates == nil {
		updates = map[string]interface{}{}
	}
	finished := time.Now()
	updates["status"] = types.JobStatusError
	updates["finished_at"] = &finished
	if _, ok := updates["error_log"]; !ok {
		updates["error_log"] = marshalErrLog([]types.RowError{{Row: 0, Reason: reason}})
	}
	if _, err := r.jobs.UpdateFieldsUnlessStatus(bg, nil, jobID, []string{types.JobStatusCancelled}, updates); err != nil {
		r.log.Error("error-state write failed", "job_id", jobID, "error", err)
	}
}

func (r *Runner) counterUpdates(processed, errorRows int, resolver *services.Resolver, catalog *services.Catalog, errLog []types.RowError) map[string]interface{} {
	updates := map[string]interface{}{
		"processed_rows":    processed,
		"error_rows":        errorRows,
		"regions_created":   resolver.Counts.RegionsCreated,
		"regions_existing":  resolver.Counts.RegionsExisting,
		"schools_created":   resolver.Counts.SchoolsCreated,
		"schools_existing":  resolver.Counts.SchoolsExisting,
		"classes_existing":  resolver.Counts.ClassesExisting,
		"students_existing": resolver.Counts.StudentsExisting,
		"questions_created": catalog.QuestionsCreated,
	}
	if len(errLog) > 0 {
		updates["error_log"] = marshalErrLog(errLog)
	}
	return updates
}

func marshalErrLog(errLog []types.RowError) datatypes.JSON {
	b, err := json.Marshal(errLog)
	if err != nil {
		return datatypes.JSON(`[]`)
	}
	return datatypes.JSON(b)
}
