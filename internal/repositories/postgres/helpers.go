package postgres

import (
	"context"

	"gorm.io/gorm"
)

// SharedHelpers carries the base connection and resolves the per-call transaction
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

func (h *SharedHelpers) getDB(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return h.db.WithContext(ctx)
}

func applyPagination(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}

func orderedOptions(db *gorm.DB) *gorm.DB {
	return db.Order("order_number ASC, id ASC")
}

func orderedQuestions(db *gorm.DB) *gorm.DB {
	return db.Order("order_number ASC, id ASC")
}

func orderedAnswers(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}
