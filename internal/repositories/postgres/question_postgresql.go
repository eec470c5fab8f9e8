package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
)

type QuestionPostgreSQL struct {
	helpers *SharedHelpers
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{helpers: NewSharedHelpers(db)}
}

// Create inserts the question; gorm creates the nested options in the same statement batch
func (q *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	return q.helpers.getDB(ctx, tx).Create(question).Error
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	var question models.Question
	if err := q.helpers.getDB(ctx, tx).Preload("Options", orderedOptions).First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]models.Question, error) {
	var questions []models.Question
	err := orderedQuestions(q.helpers.getDB(ctx, tx)).
		Preload("Options", orderedOptions).
		Where("exam_id = ?", examID).
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

func (q *QuestionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := q.helpers.getDB(ctx, tx)
	if err := db.Where("question_id = ?", id).Delete(&models.Option{}).Error; err != nil {
		return fmt.Errorf("failed to delete question options: %w", err)
	}
	result := db.Delete(&models.Question{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete question: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
