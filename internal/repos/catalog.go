package repos

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avaliaedu/avalia-backend/internal/platform/logger"
	"github.com/avaliaedu/avalia-backend/internal/types"
)

type QuestionRepo interface {
	ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Question, error)
	// CreateMissing inserts questions that don't exist yet, leaving
	// existing codes untouched.
	CreateMissing(ctx context.Context, tx *gorm.DB, questions []*types.Question) error
}

type questionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuestionRepo(db *gorm.DB, baseLog *logger.Logger) QuestionRepo {
	return &questionRepo{db: db, log: baseLog.With("repo", "QuestionRepo")}
}

func (r *questionRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Question, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Question
	if err := transaction.WithContext(ctx).Order("number ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *questionRepo) CreateMissing(ctx context.Context, tx *gorm.DB, questions []*types.Question) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(questions) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).
		CreateInBatches(&questions, 100).Error
}

type ProductionItemRepo interface {
	ListAll(ctx context.Context, tx *gorm.DB) ([]*types.ProductionItem, error)
	CreateMissing(ctx context.Context, tx *gorm.DB, items []*types.ProductionItem) error
}

type productionItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductionItemRepo(db *gorm.DB, baseLog *logger.Logger) ProductionItemRepo {
	return &productionItemRepo{db: db, log: baseLog.With("repo", "ProductionItemRepo")}
}

func (r *productionItemRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.ProductionItem, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ProductionItem
	if err := transaction.WithContext(ctx).Order("item_order ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *productionItemRepo) CreateMissing(ctx context.Context, tx *gorm.DB, items []*types.ProductionItem) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(items) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_order"}},
			DoNothing: true,
		}).
		CreateInBatches(&items, 100).Error
}
