package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceNoData  = "no-data"
)

// ConsolidatedResult is the central per-(student, cycle) output row. Later
// imports for the same key overwrite earlier ones.
type ConsolidatedResult struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_resultado_consolidado_natural" json:"student_id"`
	Cycle     string    `gorm:"not null;uniqueIndex:idx_resultado_consolidado_natural" json:"cycle"`

	Grade          string `gorm:"not null" json:"grade"`
	Attendance     string `gorm:"not null" json:"attendance"` // present|absent|no-data
	AssessmentType string `gorm:"column:assessment_type;not null" json:"assessment_type"`
	ExpectedItems  int    `gorm:"column:expected_items;not null" json:"expected_items"`

	CorrectLP *int     `gorm:"column:acertos_lp" json:"correct_lp,omitempty"`
	CorrectMT *int     `gorm:"column:acertos_mt" json:"correct_mt,omitempty"`
	ScoreLP   *float64 `gorm:"column:nota_lp" json:"score_lp,omitempty"`
	ScoreMT   *float64 `gorm:"column:nota_mt" json:"score_mt,omitempty"`
	Composite *float64 `gorm:"column:media" json:"composite,omitempty"`

	WritingScore *float64 `gorm:"column:nota_producao" json:"writing_score,omitempty"`
	WritingItem1 *float64 `gorm:"column:producao_item_1" json:"writing_item_1,omitempty"`
	WritingItem2 *float64 `gorm:"column:producao_item_2" json:"writing_item_2,omitempty"`
	WritingItem3 *float64 `gorm:"column:producao_item_3" json:"writing_item_3,omitempty"`
	WritingItem4 *float64 `gorm:"column:producao_item_4" json:"writing_item_4,omitempty"`
	WritingItem5 *float64 `gorm:"column:producao_item_5" json:"writing_item_5,omitempty"`
	WritingItem6 *float64 `gorm:"column:producao_item_6" json:"writing_item_6,omitempty"`
	WritingItem7 *float64 `gorm:"column:producao_item_7" json:"writing_item_7,omitempty"`
	WritingItem8 *float64 `gorm:"column:producao_item_8" json:"writing_item_8,omitempty"`

	TierLP             *int    `gorm:"column:nivel_lp" json:"tier_lp,omitempty"`
	TierLPLabel        *string `gorm:"column:nivel_lp_label" json:"tier_lp_label,omitempty"`
	TierMT             *int    `gorm:"column:nivel_mt" json:"tier_mt,omitempty"`
	TierMTLabel        *string `gorm:"column:nivel_mt_label" json:"tier_mt_label,omitempty"`
	TierComposite      *int    `gorm:"column:nivel_geral" json:"tier_composite,omitempty"`
	TierCompositeLabel *string `gorm:"column:nivel_geral_label" json:"tier_composite_label,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ConsolidatedResult) TableName() string { return "resultados_consolidados" }

func (r *ConsolidatedResult) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ItemResult is the granular per-question answer record, keyed by
// (student, question, cycle).
type ItemResult struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_resultado_prova_natural" json:"student_id"`
	QuestionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_resultado_prova_natural" json:"question_id"`
	Cycle      string    `gorm:"not null;uniqueIndex:idx_resultado_prova_natural" json:"cycle"`

	Answer       string   `gorm:"column:resposta" json:"answer"`
	Correct      *bool    `gorm:"column:acertou" json:"correct,omitempty"`
	AwardedPoint *float64 `gorm:"column:pontuacao;check:pontuacao >= 0" json:"awarded_point,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ItemResult) TableName() string { return "resultados_provas" }

func (r *ItemResult) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ProductionResult is one rubric-item score, keyed by
// (student, production item, cycle).
type ProductionResult struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_resultado_producao_natural" json:"student_id"`
	ProductionItemID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_resultado_producao_natural" json:"production_item_id"`
	Cycle            string    `gorm:"not null;uniqueIndex:idx_resultado_producao_natural" json:"cycle"`

	Score float64 `gorm:"column:pontuacao;not null" json:"score"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ProductionResult) TableName() string { return "resultados_producao" }

func (r *ProductionResult) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
