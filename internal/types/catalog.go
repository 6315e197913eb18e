package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Question is one objective item code ("Q1".."Q60"), shared across cycles
// and grades. The discipline/area labels are catalog defaults; per-grade
// reinterpretation happens through the grade configuration, not by mutating
// these rows.
type Question struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code       string    `gorm:"not null;uniqueIndex" json:"code"`
	Number     int       `gorm:"not null" json:"number"`
	Discipline string    `gorm:"not null" json:"discipline"`
	Area       string    `gorm:"not null" json:"area"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (Question) TableName() string { return "questoes" }

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

// ProductionItem is one writing-assessment rubric item; the set is fixed
// and ordered.
type ProductionItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Order     int       `gorm:"column:item_order;not null;uniqueIndex" json:"order"`
	Label     string    `gorm:"not null" json:"label"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ProductionItem) TableName() string { return "producao_itens" }

func (p *ProductionItem) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
