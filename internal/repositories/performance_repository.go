package repositories

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/gorm"
)

// PerformanceRepository interface for derived performance metrics
type PerformanceRepository interface {
	// Upsert is keyed on (student, exam)
	Upsert(ctx context.Context, tx *gorm.DB, metrics *models.PerformanceMetrics) error
	GetByStudentAndExam(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (*models.PerformanceMetrics, error)
	ListByStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]*models.PerformanceMetrics, error) // most recent first
	ListByBatchAndExam(ctx context.Context, tx *gorm.DB, batchID, examID uint) ([]*models.PerformanceMetrics, error)
	ListByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.PerformanceMetrics, error) // rank order
	UpdateRanks(ctx context.Context, tx *gorm.DB, ranks map[uint]int) error
	BatchAverages(ctx context.Context, tx *gorm.DB, examIDs []uint) (map[uint]float64, error) // keyed by exam id
}
