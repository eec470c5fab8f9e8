package models

import (
	"time"

	"gorm.io/gorm"
)

type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusClosed    ExamStatus = "CLOSED"
)

type QuestionType string

const (
	QuestionObjective   QuestionType = "OBJECTIVE"
	QuestionDescriptive QuestionType = "DESCRIPTIVE"
)

type Exam struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	Title           string     `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Instructions    *string    `json:"instructions" gorm:"type:text" validate:"omitempty,max=5000"`
	DurationMinutes int        `json:"duration_minutes" gorm:"not null" validate:"required,min=1,max=600"`
	Status          ExamStatus `json:"status" gorm:"size:20;not null;default:DRAFT;index"`
	BatchID         uint       `json:"batch_id" gorm:"not null;index"`
	Organization    string     `json:"organization" gorm:"size:100;index"`
	PublishedAt     *time.Time `json:"published_at"`
	ClosedAt        *time.Time `json:"closed_at"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;size:255;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:ExamID"`

	// Computed fields (not stored)
	QuestionsCount int `json:"questions_count" gorm:"-"`
	TotalPoints    int `json:"total_points" gorm:"-"`
}

func (Exam) TableName() string {
	return "exams"
}

// SumPoints returns the exam total derived from its loaded questions.
func (e *Exam) SumPoints() int {
	total := 0
	for _, q := range e.Questions {
		total += q.Points
	}
	return total
}

// FillComputed populates the non persisted counters from the loaded questions.
func (e *Exam) FillComputed() {
	e.QuestionsCount = len(e.Questions)
	e.TotalPoints = e.SumPoints()
}

type Question struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	ExamID      uint         `json:"exam_id" gorm:"not null;index"`
	Type        QuestionType `json:"type" gorm:"size:20;not null"`
	Text        string       `json:"question_text" gorm:"type:text;not null"`
	Points      int          `json:"points" gorm:"not null"`
	OrderNumber int          `json:"order_number" gorm:"not null;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Options []Option `json:"options,omitempty" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

func (Question) TableName() string {
	return "questions"
}

// CorrectOptionID returns the first option marked correct, or nil when none is.
func (q *Question) CorrectOptionID() *uint {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			id := q.Options[i].ID
			return &id
		}
	}
	return nil
}

// HasOption reports whether optionID belongs to this question.
func (q *Question) HasOption(optionID uint) bool {
	for _, o := range q.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

type Option struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	QuestionID  uint   `json:"question_id" gorm:"not null;index"`
	Text        string `json:"option_text" gorm:"type:text;not null"`
	IsCorrect   bool   `json:"is_correct" gorm:"default:false"`
	OrderNumber int    `json:"order_number" gorm:"not null"`
}

func (Option) TableName() string {
	return "question_options"
}
