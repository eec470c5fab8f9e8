package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PerformancePostgreSQL struct {
	helpers *SharedHelpers
}

func NewPerformancePostgreSQL(db *gorm.DB) repositories.PerformanceRepository {
	return &PerformancePostgreSQL{helpers: NewSharedHelpers(db)}
}

func (p *PerformancePostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, metrics *models.PerformanceMetrics) error {
	err := p.helpers.getDB(ctx, tx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "student_id"}, {Name: "exam_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"batch_id", "answer_sheet_id", "obtained_marks", "total_marks",
				"percentage", "batch_rank", "calculated_at",
			}),
		}).
		Create(metrics).Error
	if err != nil {
		return fmt.Errorf("failed to upsert performance metrics: %w", err)
	}
	return nil
}

func (p *PerformancePostgreSQL) GetByStudentAndExam(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (*models.PerformanceMetrics, error) {
	var metrics models.PerformanceMetrics
	err := p.helpers.getDB(ctx, tx).
		Where("student_id = ? AND exam_id = ?", studentID, examID).
		First(&metrics).Error
	if err != nil {
		return nil, err
	}
	return &metrics, nil
}

func (p *PerformancePostgreSQL) ListByStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]*models.PerformanceMetrics, error) {
	var rows []*models.PerformanceMetrics
	err := p.helpers.getDB(ctx, tx).
		Where("student_id = ?", studentID).
		Order("calculated_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (p *PerformancePostgreSQL) ListByBatchAndExam(ctx context.Context, tx *gorm.DB, batchID, examID uint) ([]*models.PerformanceMetrics, error) {
	var rows []*models.PerformanceMetrics
	err := p.helpers.getDB(ctx, tx).
		Where("batch_id = ? AND exam_id = ?", batchID, examID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (p *PerformancePostgreSQL) ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.PerformanceMetrics, error) {
	var rows []*models.PerformanceMetrics
	err := p.helpers.getDB(ctx, tx).
		Where("exam_id = ?", examID).
		Order("batch_rank ASC, student_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (p *PerformancePostgreSQL) UpdateRanks(ctx context.Context, tx *gorm.DB, ranks map[uint]int) error {
	db := p.helpers.getDB(ctx, tx)
	for id, rank := range ranks {
		err := db.Model(&models.PerformanceMetrics{}).
			Where("id = ?", id).
			Update("batch_rank", rank).Error
		if err != nil {
			return fmt.Errorf("failed to update rank for metrics %d: %w", id, err)
		}
	}
	return nil
}

// BatchAverages averages percentages per exam. Every metric row of an exam carries the
// exam's batch, so this is the (batch, exam) mean.
func (p *PerformancePostgreSQL) BatchAverages(ctx context.Context, tx *gorm.DB, examIDs []uint) (map[uint]float64, error) {
	averages := make(map[uint]float64, len(examIDs))
	if len(examIDs) == 0 {
		return averages, nil
	}

	var rows []struct {
		ExamID  uint
		Average float64
	}
	err := p.helpers.getDB(ctx, tx).
		Model(&models.PerformanceMetrics{}).
		Select("exam_id, AVG(percentage) AS average").
		Where("exam_id IN ?", examIDs).
		Group("exam_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		averages[r.ExamID] = r.Average
	}
	return averages, nil
}
