package postgres

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
)

type repository struct {
	db          *gorm.DB
	exam        repositories.ExamRepository
	question    repositories.QuestionRepository
	answerSheet repositories.AnswerSheetRepository
	answer      repositories.AnswerRepository
	performance repositories.PerformanceRepository
	user        repositories.UserRepository
	batch       repositories.BatchRepository
}

// NewRepository builds the gorm backed stores. The SQL is portable across the postgres and
// mysql dialectors.
func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		db:          db,
		exam:        NewExamPostgreSQL(db),
		question:    NewQuestionPostgreSQL(db),
		answerSheet: NewAnswerSheetPostgreSQL(db),
		answer:      NewAnswerPostgreSQL(db),
		performance: NewPerformancePostgreSQL(db),
		user:        NewUserPostgreSQL(db),
		batch:       NewBatchPostgreSQL(db),
	}
}

func (r *repository) Exam() repositories.ExamRepository               { return r.exam }
func (r *repository) Question() repositories.QuestionRepository       { return r.question }
func (r *repository) AnswerSheet() repositories.AnswerSheetRepository { return r.answerSheet }
func (r *repository) Answer() repositories.AnswerRepository           { return r.answer }
func (r *repository) Performance() repositories.PerformanceRepository { return r.performance }
func (r *repository) User() repositories.UserRepository               { return r.user }
func (r *repository) Batch() repositories.BatchRepository             { return r.batch }

func (r *repository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
