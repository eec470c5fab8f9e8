package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
)

type AnswerPostgreSQL struct {
	helpers *SharedHelpers
}

func NewAnswerPostgreSQL(db *gorm.DB) repositories.AnswerRepository {
	return &AnswerPostgreSQL{helpers: NewSharedHelpers(db)}
}

func (a *AnswerPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error) {
	var answer models.Answer
	if err := a.helpers.getDB(ctx, tx).First(&answer, id).Error; err != nil {
		return nil, err
	}
	return &answer, nil
}

func (a *AnswerPostgreSQL) UpdateResponse(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	return a.helpers.getDB(ctx, tx).
		Model(&models.Answer{ID: answer.ID}).
		Select("AnswerText", "SelectedOptionID", "ImageURLs", "AnsweredAt", "UpdatedAt").
		Updates(answer).Error
}

func (a *AnswerPostgreSQL) UpdateGrades(ctx context.Context, tx *gorm.DB, answers []models.Answer) error {
	db := a.helpers.getDB(ctx, tx)
	for i := range answers {
		err := db.Model(&models.Answer{ID: answers[i].ID}).
			Select("PointsAwarded", "Feedback", "IsAutoGraded", "GradedBy", "GradedAt", "UpdatedAt").
			Updates(&answers[i]).Error
		if err != nil {
			return fmt.Errorf("failed to update grade for answer %d: %w", answers[i].ID, err)
		}
	}
	return nil
}
