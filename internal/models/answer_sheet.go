package models

import (
	"time"

	"gorm.io/datatypes"
)

type AnswerSheetStatus string

const (
	SheetInProgress AnswerSheetStatus = "IN_PROGRESS"
	SheetSubmitted  AnswerSheetStatus = "SUBMITTED"
	SheetGraded     AnswerSheetStatus = "GRADED"
)

type SubmissionSource string

const (
	SubmittedByStudent SubmissionSource = "student"
	SubmittedBySweep   SubmissionSource = "sweep"
)

// AnswerSheet is a student's single timed attempt at an exam.
type AnswerSheet struct {
	ID        uint              `json:"id" gorm:"primaryKey"`
	ExamID    uint              `json:"exam_id" gorm:"not null;uniqueIndex:idx_answer_sheets_exam_student"`
	StudentID string            `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_answer_sheets_exam_student;index"`
	Status    AnswerSheetStatus `json:"status" gorm:"size:20;not null;default:IN_PROGRESS;index:idx_answer_sheets_status_expiry"`

	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	ExpiresAt   time.Time  `json:"expires_at" gorm:"not null;index:idx_answer_sheets_status_expiry"`
	SubmittedAt *time.Time `json:"submitted_at"`
	GradedAt    *time.Time `json:"graded_at"`

	SubmittedBy SubmissionSource `json:"submitted_by,omitempty" gorm:"size:20"`

	// Scores
	TotalPoints     int     `json:"total_points" gorm:"not null"`
	ObtainedPoints  *int    `json:"obtained_points"`
	OverallFeedback *string `json:"overall_feedback" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:AnswerSheetID;constraint:OnDelete:CASCADE"`
}

func (AnswerSheet) TableName() string {
	return "answer_sheets"
}

// IsFullyGraded reports whether every answer carries awarded points.
func (s *AnswerSheet) IsFullyGraded() bool {
	for _, a := range s.Answers {
		if a.PointsAwarded == nil {
			return false
		}
	}
	return true
}

// SumAwarded totals awarded points, treating ungraded answers as zero.
func (s *AnswerSheet) SumAwarded() int {
	total := 0
	for _, a := range s.Answers {
		if a.PointsAwarded != nil {
			total += *a.PointsAwarded
		}
	}
	return total
}

// PendingAnswers counts answers without awarded points.
func (s *AnswerSheet) PendingAnswers() int {
	pending := 0
	for _, a := range s.Answers {
		if a.PointsAwarded == nil {
			pending++
		}
	}
	return pending
}

type Answer struct {
	ID            uint `json:"id" gorm:"primaryKey"`
	AnswerSheetID uint `json:"answer_sheet_id" gorm:"not null;uniqueIndex:idx_answers_sheet_question"`
	QuestionID    uint `json:"question_id" gorm:"not null;uniqueIndex:idx_answers_sheet_question"`

	AnswerText       *string                     `json:"answer_text" gorm:"type:text"`
	SelectedOptionID *uint                       `json:"selected_option_id"`
	ImageURLs        datatypes.JSONSlice[string] `json:"image_urls"`
	AnsweredAt       *time.Time                  `json:"answered_at"`

	// Grading
	PointsAwarded *int       `json:"points_awarded"`
	Feedback      *string    `json:"feedback" gorm:"type:text"`
	IsAutoGraded  bool       `json:"is_auto_graded" gorm:"default:false"`
	GradedBy      *string    `json:"graded_by" gorm:"size:255"`
	GradedAt      *time.Time `json:"graded_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Answer) TableName() string {
	return "answers"
}
