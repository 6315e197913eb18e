package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avaliaedu/avalia-backend/internal/platform/logger"
	"github.com/avaliaedu/avalia-backend/internal/types"
)

type RegionRepo interface {
	GetByNormalizedName(ctx context.Context, tx *gorm.DB, normalized string) (*types.Region, error)
	Create(ctx context.Context, tx *gorm.DB, region *types.Region) error
}

type regionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRegionRepo(db *gorm.DB, baseLog *logger.Logger) RegionRepo {
	return &regionRepo{db: db, log: baseLog.With("repo", "RegionRepo")}
}

func (r *regionRepo) GetByNormalizedName(ctx context.Context, tx *gorm.DB, normalized string) (*types.Region, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var region types.Region
	err := transaction.WithContext(ctx).Where("normalized_name = ?", normalized).First(&region).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &region, nil
}

func (r *regionRepo) Create(ctx context.Context, tx *gorm.DB, region *types.Region) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(region).Error
}

type SchoolRepo interface {
	GetByNormalizedName(ctx context.Context, tx *gorm.DB, normalized string) (*types.School, error)
	Create(ctx context.Context, tx *gorm.DB, school *types.School) error
}

type schoolRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSchoolRepo(db *gorm.DB, baseLog *logger.Logger) SchoolRepo {
	return &schoolRepo{db: db, log: baseLog.With("repo", "SchoolRepo")}
}

func (r *schoolRepo) GetByNormalizedName(ctx context.Context, tx *gorm.DB, normalized string) (*types.School, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var school types.School
	err := transaction.WithContext(ctx).Where("normalized_name = ?", normalized).First(&school).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &school, nil
}

func (r *schoolRepo) Create(ctx context.Context, tx *gorm.DB, school *types.School) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(school).Error
}

type ClassRepo interface {
	GetByNaturalKey(ctx context.Context, tx *gorm.DB, schoolID uuid.UUID, cycle, normalizedCode string) (*types.Class, error)
	CreateBatch(ctx context.Context, tx *gorm.DB, classes []*types.Class) error
}

type classRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClassRepo(db *gorm.DB, baseLog *logger.Logger) ClassRepo {
	return &classRepo{db: db, log: baseLog.With("repo", "ClassRepo")}
}

func (r *classRepo) GetByNaturalKey(ctx context.Context, tx *gorm.DB, schoolID uuid.UUID, cycle, normalizedCode string) (*types.Class, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var class types.Class
	err := transaction.WithContext(ctx).
		Where("school_id = ? AND cycle = ? AND normalized_code = ?", schoolID, cycle, normalizedCode).
		First(&class).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *classRepo) CreateBatch(ctx context.Context, tx *gorm.DB, classes []*types.Class) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(classes) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).CreateInBatches(&classes, 200).Error
}

type StudentRepo interface {
	GetByNaturalKey(ctx context.Context, tx *gorm.DB, schoolID uuid.UUID, classID *uuid.UUID, cycle, normalizedName string) (*types.Student, error)
	Create(ctx context.Context, tx *gorm.DB, student *types.Student) error
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	// MaxCode returns the highest student code issued so far; 0 when none.
	MaxCode(ctx context.Context, tx *gorm.DB) (int, error)
}

type studentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudentRepo(db *gorm.DB, baseLog *logger.Logger) StudentRepo {
	return &studentRepo{db: db, log: baseLog.With("repo", "StudentRepo")}
}

func (r *studentRepo) GetByNaturalKey(ctx context.Context, tx *gorm.DB, schoolID uuid.UUID, classID *uuid.UUID, cycle, normalizedName string) (*types.Student, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).
		Where("school_id = ? AND cycle = ? AND normalized_name = ?", schoolID, cycle, normalizedName)
	if classID == nil {
		q = q.Where("class_id IS NULL")
	} else {
		q = q.Where("class_id = ?", *classID)
	}
	var student types.Student
	err := q.First(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *studentRepo) Create(ctx context.Context, tx *gorm.DB, student *types.Student) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(student).Error
}

func (r *studentRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.Student{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *studentRepo) MaxCode(ctx context.Context, tx *gorm.DB) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var max *int
	err := transaction.WithContext(ctx).
		Model(&types.Student{}).
		Select("MAX(code)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}
