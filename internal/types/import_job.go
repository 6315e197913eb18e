package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusPaused     = "paused"
	JobStatusCancelled  = "cancelled"
	JobStatusCompleted  = "completed"
	JobStatusError      = "error"
)

// MaxJobErrors caps the persisted error log; rows past the cap are still
// counted, just not itemized.
const MaxJobErrors = 50

type ImportJob struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OperatorID *uuid.UUID `gorm:"type:uuid;index" json:"operator_id,omitempty"`
	Cycle      string     `gorm:"not null;index" json:"cycle"`
	Status     string     `gorm:"not null;index" json:"status"` // queued|processing|paused|cancelled|completed|error
	FileName   string     `gorm:"column:file_name" json:"file_name"`

	TotalRows     int `gorm:"not null;default:0" json:"total_rows"`
	ProcessedRows int `gorm:"not null;default:0" json:"processed_rows"`
	ErrorRows     int `gorm:"not null;default:0" json:"error_rows"`

	RegionsCreated   int `gorm:"not null;default:0" json:"regions_created"`
	RegionsExisting  int `gorm:"not null;default:0" json:"regions_existing"`
	SchoolsCreated   int `gorm:"not null;default:0" json:"schools_created"`
	SchoolsExisting  int `gorm:"not null;default:0" json:"schools_existing"`
	ClassesCreated   int `gorm:"not null;default:0" json:"classes_created"`
	ClassesExisting  int `gorm:"not null;default:0" json:"classes_existing"`
	StudentsCreated  int `gorm:"not null;default:0" json:"students_created"`
	StudentsExisting int `gorm:"not null;default:0" json:"students_existing"`
	QuestionsCreated int `gorm:"not null;default:0" json:"questions_created"`

	ResultsCreated        int `gorm:"not null;default:0" json:"results_created"`
	ResultsUpdated        int `gorm:"not null;default:0" json:"results_updated"`
	ItemRowsWritten       int `gorm:"not null;default:0" json:"item_rows_written"`
	ProductionRowsWritten int `gorm:"not null;default:0" json:"production_rows_written"`
	DiscardedRecords      int `gorm:"not null;default:0" json:"discarded_records"`

	ErrorLog datatypes.JSON `gorm:"column:error_log" json:"error_log,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null" json:"updated_at"`
}

func (ImportJob) TableName() string { return "import_jobs" }

func (j *ImportJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// Terminal reports whether the job has reached a state it can never leave.
func (j *ImportJob) Terminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusCancelled, JobStatusError:
		return true
	}
	return false
}

// RowError is one entry of ImportJob.ErrorLog.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}
