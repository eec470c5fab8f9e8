package postgres

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
)

type UserPostgreSQL struct {
	helpers *SharedHelpers
}

func NewUserPostgreSQL(db *gorm.DB) repositories.UserRepository {
	return &UserPostgreSQL{helpers: NewSharedHelpers(db)}
}

func (u *UserPostgreSQL) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := u.helpers.getDB(ctx, nil).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (u *UserPostgreSQL) GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	result := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []*models.User
	if err := u.helpers.getDB(ctx, nil).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, user := range users {
		result[user.ID] = user
	}
	return result, nil
}

type BatchPostgreSQL struct {
	helpers *SharedHelpers
}

func NewBatchPostgreSQL(db *gorm.DB) repositories.BatchRepository {
	return &BatchPostgreSQL{helpers: NewSharedHelpers(db)}
}

func (b *BatchPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Batch, error) {
	var batch models.Batch
	if err := b.helpers.getDB(ctx, tx).First(&batch, id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (b *BatchPostgreSQL) ListSummaries(ctx context.Context, tx *gorm.DB, organization string) ([]*repositories.BatchSummary, error) {
	summaries := []*repositories.BatchSummary{}
	query := b.helpers.getDB(ctx, tx).
		Table("batches AS b").
		Select(`b.id, b.name,
			(SELECT COUNT(*) FROM batch_students bs WHERE bs.batch_id = b.id) AS student_count,
			(SELECT COUNT(*) FROM exams e WHERE e.batch_id = b.id AND e.status = ? AND e.deleted_at IS NULL) AS exam_count`,
			models.ExamStatusPublished)
	if organization != "" {
		query = query.Where("b.organization = ?", organization)
	}
	if err := query.Order("b.name ASC, b.id ASC").Scan(&summaries).Error; err != nil {
		return nil, err
	}
	return summaries, nil
}

func (b *BatchPostgreSQL) IsMember(ctx context.Context, tx *gorm.DB, batchID uint, studentID string) (bool, error) {
	var count int64
	err := b.helpers.getDB(ctx, tx).
		Model(&models.BatchStudent{}).
		Where("batch_id = ? AND student_id = ?", batchID, studentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (b *BatchPostgreSQL) BatchIDsForStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]uint, error) {
	ids := []uint{}
	err := b.helpers.getDB(ctx, tx).
		Model(&models.BatchStudent{}).
		Where("student_id = ?", studentID).
		Pluck("batch_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
