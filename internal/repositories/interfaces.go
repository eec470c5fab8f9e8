package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/gorm"
)

// Repository gives services access to every store plus a transaction scope.
// Each store method takes an optional tx; nil runs against the base connection.
type Repository interface {
	Exam() ExamRepository
	Question() QuestionRepository
	AnswerSheet() AnswerSheetRepository
	Answer() AnswerRepository
	Performance() PerformanceRepository
	User() UserRepository
	Batch() BatchRepository

	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ===== SHARED FILTER STRUCTS =====

type ExamFilters struct {
	Status       *models.ExamStatus `json:"status"`
	CreatedBy    string             `json:"created_by"`
	Organization string             `json:"organization"`
	BatchIDs     []uint             `json:"batch_ids"`
	Limit        int                `json:"limit"`
	Offset       int                `json:"offset"`
}

type EvaluationQueueFilters struct {
	ExamID       *uint  `json:"exam_id"`
	CreatedBy    string `json:"created_by"`
	Organization string `json:"organization"`
	Limit        int    `json:"limit"`
	Offset       int    `json:"offset"`
}

// ===== SHARED RESULT STRUCTS =====

// EvaluationQueueItem is a SUBMITTED sheet awaiting faculty grading
type EvaluationQueueItem struct {
	AnswerSheetID  uint                     `json:"answer_sheet_id"`
	ExamID         uint                     `json:"exam_id"`
	ExamTitle      string                   `json:"exam_title"`
	StudentID      string                   `json:"student_id"`
	Status         models.AnswerSheetStatus `json:"status"`
	SubmittedAt    *time.Time               `json:"submitted_at"`
	TotalPoints    int                      `json:"total_points"`
	ObtainedPoints *int                     `json:"obtained_points"`
	PendingAnswers int                      `json:"pending_answers"`
}

// ===== ERROR CLASSIFIERS =====

// ErrConcurrentUpdate reports a guarded write whose precondition no longer held
var ErrConcurrentUpdate = errors.New("row was changed concurrently")

func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateKeyError relies on gorm.Config.TranslateError being enabled
func IsDuplicateKeyError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
