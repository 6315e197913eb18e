package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avaliaedu/avalia-backend/internal/platform/logger"
	"github.com/avaliaedu/avalia-backend/internal/types"
)

// consolidatedAssignments are the columns rewritten when a re-import hits
// the same (student, cycle) natural key.
var consolidatedAssignments = []string{
	"grade", "attendance", "assessment_type", "expected_items",
	"acertos_lp", "acertos_mt", "nota_lp", "nota_mt", "media",
	"nota_producao",
	"producao_item_1", "producao_item_2", "producao_item_3", "producao_item_4",
	"producao_item_5", "producao_item_6", "producao_item_7", "producao_item_8",
	"nivel_lp", "nivel_lp_label", "nivel_mt", "nivel_mt_label",
	"nivel_geral", "nivel_geral_label",
	"updated_at",
}

type ResultRepo interface {
	// ExistingConsolidatedStudents returns the set of student ids that
	// already have a consolidated row for the cycle, so the caller can
	// count creates vs. updates.
	ExistingConsolidatedStudents(ctx context.Context, tx *gorm.DB, studentIDs []uuid.UUID, cycle string) (map[uuid.UUID]bool, error)
	UpsertConsolidated(ctx context.Context, tx *gorm.DB, row *types.ConsolidatedResult) error
	UpsertItemBatch(ctx context.Context, tx *gorm.DB, rows []*types.ItemResult) error
	UpsertItem(ctx context.Context, tx *gorm.DB, row *types.ItemResult) error
	UpsertProductionBatch(ctx context.Context, tx *gorm.DB, rows []*types.ProductionResult) error
	UpsertProduction(ctx context.Context, tx *gorm.DB, row *types.ProductionResult) error
	CountConsolidated(ctx context.Context, tx *gorm.DB, cycle string) (int64, error)
	CountItems(ctx context.Context, tx *gorm.DB, cycle string) (int64, error)
	CountProductions(ctx context.Context, tx *gorm.DB, cycle string) (int64, error)
}

type resultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResultRepo(db *gorm.DB, baseLog *logger.Logger) ResultRepo {
	return &resultRepo{db: db, log: baseLog.With("repo", "ResultRepo")}
}

func (r *resultRepo) ExistingConsolidatedStudents(ctx context.Context, tx *gorm.DB, studentIDs []uuid.UUID, cycle string) (map[uuid.UUID]bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	out := make(map[uuid.UUID]bool, len(studentIDs))
	if len(studentIDs) == 0 {
		return out, nil
	}
	var ids []uuid.UUID
	err := transaction.WithContext(ctx).
		Model(&types.ConsolidatedResult{}).
		Where("cycle = ? AND student_id IN ?", cycle, studentIDs).
		Pluck("student_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (r *resultRepo) UpsertConsolidated(ctx context.Context, tx *gorm.DB, row *types.ConsolidatedResult) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "cycle"}},
			DoUpdates: clause.AssignmentColumns(consolidatedAssignments),
		}).
		Create(row).Error
}

func (r *resultRepo) UpsertItemBatch(ctx context.Context, tx *gorm.DB, rows []*types.ItemResult) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "question_id"}, {Name: "cycle"}},
			DoUpdates: clause.AssignmentColumns([]string{"resposta", "acertou", "pontuacao", "updated_at"}),
		}).
		Create(&rows).Error
}

func (r *resultRepo) UpsertItem(ctx context.Context, tx *gorm.DB, row *types.ItemResult) error {
	return r.UpsertItemBatch(ctx, tx, []*types.ItemResult{row})
}

func (r *resultRepo) UpsertProductionBatch(ctx context.Context, tx *gorm.DB, rows []*types.ProductionResult) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "production_item_id"}, {Name: "cycle"}},
			DoUpdates: clause.AssignmentColumns([]string{"pontuacao", "updated_at"}),
		}).
		Create(&rows).Error
}

func (r *resultRepo) UpsertProduction(ctx context.Context, tx *gorm.DB, row *types.ProductionResult) error {
	return r.UpsertProductionBatch(ctx, tx, []*types.ProductionResult{row})
}

func (r *resultRepo) CountConsolidated(ctx context.Context, tx *gorm.DB, cycle string) (int64, error) {
	return r.countByCycle(ctx, tx, &types.ConsolidatedResult{}, cycle)
}

func (r *resultRepo) CountItems(ctx context.Context, tx *gorm.DB, cycle string) (int64, error) {
	return r.countByCycle(ctx, tx, &types.ItemResult{}, cycle)
}

func (r *resultRepo) CountProductions(ctx context.Context, tx *gorm.DB, cycle string) (int64, error) {
	return r.countByCycle(ctx, tx, &types.ProductionResult{}, cycle)
}

func (r *resultRepo) countByCycle(ctx context.Context, tx *gorm.DB, model interface{}, cycle string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(ctx).
		Model(model).
		Where("cycle = ?", cycle).
		Count(&n).Error
	return n, err
}
