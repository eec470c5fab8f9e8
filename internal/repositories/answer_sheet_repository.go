package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/gorm"
)

// AnswerSheetRepository interface for attempt operations
type AnswerSheetRepository interface {
	// Create inserts the sheet with its blank answers. A second sheet for the same
	// (exam, student) fails with a duplicate key error.
	Create(ctx context.Context, tx *gorm.DB, sheet *models.AnswerSheet) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AnswerSheet, error)
	// GetByIDForUpdate row-locks the sheet for the rest of tx
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.AnswerSheet, error)
	GetByExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.AnswerSheet, error)
	GetActiveByStudent(ctx context.Context, tx *gorm.DB, studentID string) (*models.AnswerSheet, error)
	ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.AnswerSheet, error)

	// MarkSubmitted persists a submit transition only if the row is still IN_PROGRESS.
	// False means another submitter won.
	MarkSubmitted(ctx context.Context, tx *gorm.DB, sheet *models.AnswerSheet) (bool, error)
	MarkGraded(ctx context.Context, tx *gorm.DB, sheet *models.AnswerSheet) error
	UpdateObtainedPoints(ctx context.Context, tx *gorm.DB, id uint, obtained int) error
	UpdateFeedback(ctx context.Context, tx *gorm.DB, id uint, feedback *string) error

	// ListExpiredIDs returns IN_PROGRESS sheets whose deadline passed, oldest first
	ListExpiredIDs(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]uint, error)
	EvaluationQueue(ctx context.Context, tx *gorm.DB, filters EvaluationQueueFilters) ([]*EvaluationQueueItem, int64, error)
}

// AnswerRepository interface for individual answers
type AnswerRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error)
	// UpdateResponse writes the student captured fields
	UpdateResponse(ctx context.Context, tx *gorm.DB, answer *models.Answer) error
	// UpdateGrades writes the grading fields of every answer given
	UpdateGrades(ctx context.Context, tx *gorm.DB, answers []models.Answer) error
}
