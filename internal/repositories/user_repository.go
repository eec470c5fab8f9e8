package repositories

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/gorm"
)

// UserRepository interface for the user directory (read only, the identity provider owns users)
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// BatchSummary is a batch with its enrolment and published exam counts
type BatchSummary struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	StudentCount int    `json:"student_count"`
	ExamCount    int    `json:"exam_count"`
}

// BatchRepository interface for batch membership lookups
type BatchRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Batch, error)
	// ListSummaries returns the organization's batches by name; empty org lists every batch
	ListSummaries(ctx context.Context, tx *gorm.DB, organization string) ([]*BatchSummary, error)
	IsMember(ctx context.Context, tx *gorm.DB, batchID uint, studentID string) (bool, error)
	BatchIDsForStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]uint, error)
}
