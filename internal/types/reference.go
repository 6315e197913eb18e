package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Region is the top of the reference hierarchy (a "polo" grouping schools).
// Rows are created lazily during imports and never deleted here.
type Region struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string    `gorm:"not null" json:"name"`
	NormalizedName string    `gorm:"column:normalized_name;not null;uniqueIndex" json:"-"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

func (Region) TableName() string { return "polos" }

func (r *Region) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type School struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RegionID       uuid.UUID `gorm:"type:uuid;not null;index" json:"region_id"`
	Name           string    `gorm:"not null" json:"name"`
	NormalizedName string    `gorm:"column:normalized_name;not null;uniqueIndex" json:"-"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

func (School) TableName() string { return "escolas" }

func (s *School) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Class is scoped by testing cycle; the natural key is
// (normalized code, school, cycle).
type Class struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SchoolID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_turma_natural" json:"school_id"`
	Cycle          string    `gorm:"not null;uniqueIndex:idx_turma_natural" json:"cycle"`
	Code           string    `gorm:"not null" json:"code"`
	NormalizedCode string    `gorm:"column:normalized_code;not null;uniqueIndex:idx_turma_natural" json:"-"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

func (Class) TableName() string { return "turmas" }

func (c *Class) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Student carries a sequential Code that is immutable once issued; the
// natural key is (normalized name, school, class-or-null, cycle).
type Student struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SchoolID       uuid.UUID  `gorm:"type:uuid;not null;index:idx_aluno_lookup" json:"school_id"`
	ClassID        *uuid.UUID `gorm:"type:uuid;index" json:"class_id,omitempty"`
	Cycle          string     `gorm:"not null;index:idx_aluno_lookup" json:"cycle"`
	Code           int        `gorm:"not null;uniqueIndex" json:"code"`
	Name           string     `gorm:"not null" json:"name"`
	NormalizedName string     `gorm:"column:normalized_name;not null;index:idx_aluno_lookup" json:"-"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

func (Student) TableName() string { return "alunos" }

func (s *Student) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
