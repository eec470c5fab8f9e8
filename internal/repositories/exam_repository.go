package repositories

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/gorm"
)

// ExamRepository interface for exam operations
type ExamRepository interface {
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	// GetByIDForUpdate row-locks the exam, serializing rank recomputation per exam
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) // questions and options ordered
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) (map[uint]*models.Exam, error)
	Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error // Soft delete

	List(ctx context.Context, tx *gorm.DB, filters ExamFilters) ([]*models.Exam, int64, error)
}

// QuestionRepository interface for exam questions and their options
type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error // options included
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]models.Question, error)
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
}
