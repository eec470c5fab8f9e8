package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ExamPostgreSQL struct {
	helpers *SharedHelpers
}

func NewExamPostgreSQL(db *gorm.DB) repositories.ExamRepository {
	return &ExamPostgreSQL{helpers: NewSharedHelpers(db)}
}

func (e *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	return e.helpers.getDB(ctx, tx).Omit("Questions").Create(exam).Error
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	var exam models.Exam
	if err := e.helpers.getDB(ctx, tx).First(&exam, id).Error; err != nil {
		return nil, err
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	var exam models.Exam
	if err := e.helpers.getDB(ctx, tx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&exam, id).Error; err != nil {
		return nil, err
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	var exam models.Exam
	err := e.helpers.getDB(ctx, tx).
		Preload("Questions", orderedQuestions).
		Preload("Questions.Options", orderedOptions).
		First(&exam, id).Error
	if err != nil {
		return nil, err
	}

	exam.FillComputed()
	return &exam, nil
}

func (e *ExamPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) (map[uint]*models.Exam, error) {
	result := make(map[uint]*models.Exam, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var exams []*models.Exam
	if err := e.helpers.getDB(ctx, tx).Where("id IN ?", ids).Find(&exams).Error; err != nil {
		return nil, err
	}
	for _, exam := range exams {
		result[exam.ID] = exam
	}
	return result, nil
}

// Update writes the exam's own columns; questions are managed by QuestionRepository
func (e *ExamPostgreSQL) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	err := e.helpers.getDB(ctx, tx).
		Model(&models.Exam{ID: exam.ID}).
		Select("Title", "Instructions", "DurationMinutes", "Status", "PublishedAt", "ClosedAt", "UpdatedAt").
		Updates(exam).Error
	if err != nil {
		return fmt.Errorf("failed to update exam: %w", err)
	}
	return nil
}

func (e *ExamPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	return e.helpers.getDB(ctx, tx).Delete(&models.Exam{}, id).Error
}

func (e *ExamPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	var exams []*models.Exam
	var total int64

	query := e.helpers.getDB(ctx, tx).Model(&models.Exam{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.CreatedBy != "" {
		query = query.Where("created_by = ?", filters.CreatedBy)
	}
	if filters.Organization != "" {
		query = query.Where("organization = ?", filters.Organization)
	}
	if filters.BatchIDs != nil {
		if len(filters.BatchIDs) == 0 {
			return exams, 0, nil
		}
		query = query.Where("batch_id IN ?", filters.BatchIDs)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query.Order("created_at DESC, id DESC"), filters.Limit, filters.Offset)
	if err := query.Preload("Questions").Find(&exams).Error; err != nil {
		return nil, 0, err
	}

	for _, exam := range exams {
		exam.FillComputed()
		// listing only needs the counters
		exam.Questions = nil
	}
	return exams, total, nil
}
