package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnswerSheetPostgreSQL struct {
	helpers *SharedHelpers
}

func NewAnswerSheetPostgreSQL(db *gorm.DB) repositories.AnswerSheetRepository {
	return &AnswerSheetPostgreSQL{helpers: NewSharedHelpers(db)}
}

func (a *AnswerSheetPostgreSQL) Create(ctx context.Context, tx *gorm.DB, sheet *models.AnswerSheet) error {
	return a.helpers.getDB(ctx, tx).Create(sheet).Error
}

func (a *AnswerSheetPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AnswerSheet, error) {
	var sheet models.AnswerSheet
	if err := a.helpers.getDB(ctx, tx).Preload("Answers", orderedAnswers).First(&sheet, id).Error; err != nil {
		return nil, err
	}
	return &sheet, nil
}

// GetByIDForUpdate locks only the sheet row; answers are read afterwards under that lock
func (a *AnswerSheetPostgreSQL) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.AnswerSheet, error) {
	db := a.helpers.getDB(ctx, tx)

	var sheet models.AnswerSheet
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sheet, id).Error; err != nil {
		return nil, err
	}
	if err := orderedAnswers(db).Where("answer_sheet_id = ?", id).Find(&sheet.Answers).Error; err != nil {
		return nil, fmt.Errorf("failed to load answers: %w", err)
	}
	return &sheet, nil
}

func (a *AnswerSheetPostgreSQL) GetByExamAndStudent(ctx context.Context, tx *gorm.DB, examID uint, studentID string) (*models.AnswerSheet, error) {
	var sheet models.AnswerSheet
	err := a.helpers.getDB(ctx, tx).
		Preload("Answers", orderedAnswers).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		First(&sheet).Error
	if err != nil {
		return nil, err
	}
	return &sheet, nil
}

func (a *AnswerSheetPostgreSQL) GetActiveByStudent(ctx context.Context, tx *gorm.DB, studentID string) (*models.AnswerSheet, error) {
	var sheet models.AnswerSheet
	err := a.helpers.getDB(ctx, tx).
		Preload("Answers", orderedAnswers).
		Where("student_id = ? AND status = ?", studentID, models.SheetInProgress).
		Order("started_at DESC").
		First(&sheet).Error
	if err != nil {
		return nil, err
	}
	return &sheet, nil
}

func (a *AnswerSheetPostgreSQL) ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.AnswerSheet, error) {
	var sheets []*models.AnswerSheet
	err := a.helpers.getDB(ctx, tx).
		Preload("Answers", orderedAnswers).
		Where("exam_id = ?", examID).
		Order("student_id ASC").
		Find(&sheets).Error
	if err != nil {
		return nil, err
	}
	return sheets, nil
}

func (a *AnswerSheetPostgreSQL) MarkSubmitted(ctx context.Context, tx *gorm.DB, sheet *models.AnswerSheet) (bool, error) {
	result := a.helpers.getDB(ctx, tx).
		Model(&models.AnswerSheet{}).
		Where("id = ? AND status = ?", sheet.ID, models.SheetInProgress).
		Updates(map[string]interface{}{
			"status":          sheet.Status,
			"submitted_at":    sheet.SubmittedAt,
			"submitted_by":    sheet.SubmittedBy,
			"obtained_points": sheet.ObtainedPoints,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to submit answer sheet: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (a *AnswerSheetPostgreSQL) MarkGraded(ctx context.Context, tx *gorm.DB, sheet *models.AnswerSheet) error {
	result := a.helpers.getDB(ctx, tx).
		Model(&models.AnswerSheet{}).
		Where("id = ? AND status = ?", sheet.ID, models.SheetSubmitted).
		Updates(map[string]interface{}{
			"status":          sheet.Status,
			"graded_at":       sheet.GradedAt,
			"obtained_points": sheet.ObtainedPoints,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to finalize answer sheet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrConcurrentUpdate
	}
	return nil
}

func (a *AnswerSheetPostgreSQL) UpdateObtainedPoints(ctx context.Context, tx *gorm.DB, id uint, obtained int) error {
	return a.helpers.getDB(ctx, tx).
		Model(&models.AnswerSheet{}).
		Where("id = ?", id).
		Update("obtained_points", obtained).Error
}

func (a *AnswerSheetPostgreSQL) UpdateFeedback(ctx context.Context, tx *gorm.DB, id uint, feedback *string) error {
	return a.helpers.getDB(ctx, tx).
		Model(&models.AnswerSheet{}).
		Where("id = ?", id).
		Update("overall_feedback", feedback).Error
}

func (a *AnswerSheetPostgreSQL) ListExpiredIDs(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]uint, error) {
	var ids []uint
	query := a.helpers.getDB(ctx, tx).
		Model(&models.AnswerSheet{}).
		Where("status = ? AND expires_at < ?", models.SheetInProgress, now).
		Order("expires_at ASC")
	if err := applyPagination(query, limit, 0).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (a *AnswerSheetPostgreSQL) EvaluationQueue(ctx context.Context, tx *gorm.DB, filters repositories.EvaluationQueueFilters) ([]*repositories.EvaluationQueueItem, int64, error) {
	var items []*repositories.EvaluationQueueItem
	var total int64

	query := a.helpers.getDB(ctx, tx).
		Table("answer_sheets AS s").
		Joins("JOIN exams e ON e.id = s.exam_id AND e.deleted_at IS NULL").
		Where("s.status = ?", models.SheetSubmitted)
	if filters.ExamID != nil {
		query = query.Where("s.exam_id = ?", *filters.ExamID)
	}
	if filters.CreatedBy != "" {
		query = query.Where("e.created_by = ?", filters.CreatedBy)
	}
	if filters.Organization != "" {
		query = query.Where("e.organization = ?", filters.Organization)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Select(`s.id AS answer_sheet_id, s.exam_id, e.title AS exam_title, s.student_id,
		s.status, s.submitted_at, s.total_points, s.obtained_points,
		(SELECT COUNT(*) FROM answers a WHERE a.answer_sheet_id = s.id AND a.points_awarded IS NULL) AS pending_answers`).
		Order("s.submitted_at ASC, s.id ASC")

	if err := applyPagination(query, filters.Limit, filters.Offset).Scan(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
