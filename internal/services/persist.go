package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/avaliaedu/avalia-backend/internal/db"
	"github.com/avaliaedu/avalia-backend/internal/platform/logger"
	"github.com/avaliaedu/avalia-backend/internal/repos"
	"github.com/avaliaedu/avalia-backend/internal/types"
)

// resultBatchSize is the chunk size for granular result upserts. A failed
// chunk is retried row by row so one bad record costs one row, not the
// whole statement.
const resultBatchSize = 300

type ConsolidatedDraft struct {
	SourceRow int
	Student   EntityRef
	Row       types.ConsolidatedResult
}

type ItemRecordDraft struct {
	SourceRow  int
	Student    EntityRef
	QuestionID uuid.UUID
	Answer     string
	Correct    *bool
	Point      *float64
}

type ProductionRecordDraft struct {
	SourceRow int
	Student   EntityRef
	ItemID    uuid.UUID
	Score     float64
}

// Queues accumulate everything an import run wants written; rows reference
// not-yet-created classes and students through arena temps.
type Queues struct {
	Consolidated []*ConsolidatedDraft
	Items        []*ItemRecordDraft
	Productions  []*ProductionRecordDraft
}

type FlushStats struct {
	ClassesCreated        int
	StudentsCreated       int
	StudentsExisting      int
	ResultsCreated        int
	ResultsUpdated        int
	ItemRowsWritten       int
	ProductionRowsWritten int
	DiscardedRecords      int
	WriteErrors           []types.RowError
}

type PersistService interface {
	// Flush materializes the arenas and queues: classes first, then
	// students (update-or-insert on the natural key, sequential codes from
	// codeSeq), then results with temps rewritten to real ids. Records
	// whose temp never resolved are counted as discarded, never written
	// half-keyed.
	Flush(ctx context.Context, res *Resolver, q *Queues, codeSeq *int) (*FlushStats, error)
}

type persistService struct {
	log      *logger.Logger
	classes  repos.ClassRepo
	students repos.StudentRepo
	results  repos.ResultRepo
}

func NewPersistService(baseLog *logger.Logger, classes repos.ClassRepo, students repos.StudentRepo, results repos.ResultRepo) PersistService {
	return &persistService{
		log:      baseLog.With("service", "PersistService"),
		classes:  classes,
		students: students,
		results:  results,
	}
}

func (s *persistService) Flush(ctx context.Context, res *Resolver, q *Queues, codeSeq *int) (*FlushStats, error) {
	stats := &FlushStats{}

	classIDs, err := s.flushClasses(ctx, res, stats)
	if err != nil {
		return stats, err
	}
	studentIDs, err := s.flushStudents(ctx, res, classIDs, stats, codeSeq)
	if err != nil {
		return stats, err
	}

	resolve := func(ref EntityRef) (uuid.UUID, bool) {
		if ref.Resolved() {
			return ref.ID, true
		}
		id, ok := studentIDs[ref.Temp]
		return id, ok
	}

	if err := s.flushConsolidated(ctx, res.cycle, q, resolve, stats); err != nil {
		return stats, err
	}
	if err := s.flushItems(ctx, res.cycle, q, resolve, stats); err != nil {
		return stats, err
	}
	if err := s.flushProductions(ctx, res.cycle, q, resolve, stats); err != nil {
		return stats, err
	}

	s.log.Info("flush done",
		"classes_created", stats.ClassesCreated,
		"students_created", stats.StudentsCreated,
		"students_existing", stats.StudentsExisting,
		"results_created", stats.ResultsCreated,
		"results_updated", stats.ResultsUpdated,
		"item_rows", stats.ItemRowsWritten,
		"production_rows", stats.ProductionRowsWritten,
		"discarded", stats.DiscardedRecords)
	return stats, nil
}

func (s *persistService) flushClasses(ctx context.Context, res *Resolver, stats *FlushStats) (map[int]uuid.UUID, error) {
	ids := make(map[int]uuid.UUID, len(res.ClassArena))
	if len(res.ClassArena) == 0 {
		return ids, nil
	}
	rows := make([]*types.Class, 0, len(res.ClassArena))
	for _, d := range res.ClassArena {
		rows = append(rows, &types.Class{
			SchoolID:       d.SchoolID,
			Cycle:          d.Cycle,
			Code:           d.Code,
			NormalizedCode: d.NormalizedCode,
		})
	}
	err := db.WithRetry(ctx, func() error {
		return s.classes.CreateBatch(ctx, nil, rows)
	})
	if err != nil {
		return nil, fmt.Errorf("create classes: %w", err)
	}
	for i, row := range rows {
		ids[res.ClassArena[i].Temp] = row.ID
	}
	stats.ClassesCreated = len(rows)
	return ids, nil
}

func (s *persistService) flushStudents(ctx context.Context, res *Resolver, classIDs map[int]uuid.UUID, stats *FlushStats, codeSeq *int) (map[int]uuid.UUID, error) {
	ids := make(map[int]uuid.UUID, len(res.StudentArena))
	for _, d := range res.StudentArena {
		var classID *uuid.UUID
		if d.HasClass {
			if d.Class.Resolved() {
				id := d.Class.ID
				classID = &id
			} else if id, ok := classIDs[d.Class.Temp]; ok {
				classID = &id
			} else {
				stats.DiscardedRecords++
				continue
			}
		}

		var existing *types.Student
		err := db.WithRetry(ctx, func() error {
			var lookupErr error
			existing, lookupErr = s.students.GetByNaturalKey(ctx, nil, d.SchoolID, classID, d.Cycle, d.NormalizedName)
			return lookupErr
		})
		if err != nil {
			return nil, fmt.Errorf("lookup student: %w", err)
		}
		if existing != nil {
			updates := map[string]interface{}{"name": d.Name}
			err := db.WithRetry(ctx, func() error {
				return s.students.UpdateFields(ctx, nil, existing.ID, updates)
			})
			if err != nil {
				return nil, fmt.Errorf("update student: %w", err)
			}
			ids[d.Temp] = existing.ID
			stats.StudentsExisting++
			continue
		}

		*codeSeq++
		student := &types.Student{
			SchoolID:       d.SchoolID,
			ClassID:        classID,
			Cycle:          d.Cycle,
			Code:           *codeSeq,
			Name:           d.Name,
			NormalizedName: d.NormalizedName,
		}
		err = db.WithRetry(ctx, func() error {
			return s.students.Create(ctx, nil, student)
		})
		if err != nil {
			return nil, fmt.Errorf("create student: %w", err)
		}
		ids[d.Temp] = student.ID
		stats.StudentsCreated++
	}
	return ids, nil
}

func (s *persistService) flushConsolidated(ctx context.Context, cycle string, q *Queues, resolve func(EntityRef) (uuid.UUID, bool), stats *FlushStats) error {
	studentIDs := make([]uuid.UUID, 0, len(q.Consolidated))
	for _, d := range q.Consolidated {
		if id, ok := resolve(d.Student); ok {
			studentIDs = append(studentIDs, id)
		}
	}
	var existed map[uuid.UUID]bool
	err := db.WithRetry(ctx, func() error {
		var lookupErr error
		existed, lookupErr = s.results.ExistingConsolidatedStudents(ctx, nil, studentIDs, cycle)
		return lookupErr
	})
	if err != nil {
		return fmt.Errorf("list existing consolidated: %w", err)
	}

	for _, d := range q.Consolidated {
		id, ok := resolve(d.Student)
		if !ok {
			stats.DiscardedRecords++
			continue
		}
		row := d.Row
		row.StudentID = id
		row.Cycle = cycle
		err := db.WithRetry(ctx, func() error {
			return s.results.UpsertConsolidated(ctx, nil, &row)
		})
		if err != nil {
			stats.WriteErrors = append(stats.WriteErrors, types.RowError{
				Row:    d.SourceRow,
				Reason: fmt.Sprintf("write consolidated result: %v", err),
			})
			continue
		}
		if existed[id] {
			stats.ResultsUpdated++
		} else {
			stats.ResultsCreated++
		}
	}
	return nil
}

func (s *persistService) flushItems(ctx context.Context, cycle string, q *Queues, resolve func(EntityRef) (uuid.UUID, bool), stats *FlushStats) error {
	rows := make([]*types.ItemResult, 0, len(q.Items))
	sourceRows := make([]int, 0, len(q.Items))
	for _, d := range q.Items {
		id, ok := resolve(d.Student)
		if !ok {
			stats.DiscardedRecords++
			continue
		}
		rows = append(rows, &types.ItemResult{
			StudentID:    id,
			QuestionID:   d.QuestionID,
			Cycle:        cycle,
			Answer:       d.Answer,
			Correct:      d.Correct,
			AwardedPoint: d.Point,
		})
		sourceRows = append(sourceRows, d.SourceRow)
	}

	for start := 0; start < len(rows); start += resultBatchSize {
		end := start + resultBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]
		err := db.WithRetry(ctx, func() error {
			return s.results.UpsertItemBatch(ctx, nil, chunk)
		})
		if err == nil {
			stats.ItemRowsWritten += len(chunk)
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn("item batch failed, retrying row by row", "size", len(chunk), "error", err)
		for i, row := range chunk {
			rowErr := db.WithRetry(ctx, func() error {
				return s.results.UpsertItem(ctx, nil, row)
			})
			if rowErr != nil {
				stats.WriteErrors = append(stats.WriteErrors, types.RowError{
					Row:    sourceRows[start+i],
					Reason: fmt.Sprintf("write item result: %v", rowErr),
				})
				continue
			}
			stats.ItemRowsWritten++
		}
	}
	return nil
}

func (s *persistService) flushProductions(ctx context.Context, cycle string, q *Queues, resolve func(EntityRef) (uuid.UUID, bool), stats *FlushStats) error {
	rows := make([]*types.ProductionResult, 0, len(q.Productions))
	sourceRows := make([]int, 0, len(q.Productions))
	for _, d := range q.Productions {
		id, ok := resolve(d.Student)
		if !ok {
			stats.DiscardedRecords++
			continue
		}
		rows = append(rows, &types.ProductionResult{
			StudentID:        id,
			ProductionItemID: d.ItemID,
			Cycle:            cycle,
			Score:            d.Score,
		})
		sourceRows = append(sourceRows, d.SourceRow)
	}

	for start := 0; start < len(rows); start += resultBatchSize {
		end := start + resultBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]
		err := db.WithRetry(ctx, func() error {
			return s.results.UpsertProductionBatch(ctx, nil, chunk)
		})
		if err == nil {
			stats.ProductionRowsWritten += len(chunk)
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn("production batch failed, retrying row by row", "size", len(chunk), "error", err)
		for i, row := range chunk {
			rowErr := db.WithRetry(ctx, func() error {
				return s.results.UpsertProduction(ctx, nil, row)
			})
			if rowErr != nil {
				stats.WriteErrors = append(stats.WriteErrors, types.RowError{
					Row:    sourceRows[start+i],
					Reason: fmt.Sprintf("write production result: %v", rowErr),
				})
				continue
			}
			stats.ProductionRowsWritten++
		}
	}
	return nil
}
