package services

import (
	"context"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
)

// ExamService owns exam authoring and the DRAFT -> PUBLISHED -> CLOSED lifecycle
type ExamService interface {
	Create(ctx context.Context, req *CreateExamRequest, actor models.Actor) (*models.Exam, error)
	Update(ctx context.Context, examID uint, req *UpdateExamRequest, actor models.Actor) (*models.Exam, error)
	GetByID(ctx context.Context, examID uint, actor models.Actor) (*models.Exam, error)
	ListByFaculty(ctx context.Context, actor models.Actor, limit, offset int) ([]*models.Exam, int64, error)
	// ListBatches returns the batches of the caller's organization an exam can target
	ListBatches(ctx context.Context, actor models.Actor) ([]*repositories.BatchSummary, error)

	AddQuestion(ctx context.Context, examID uint, req *CreateQuestionRequest, actor models.Actor) (*models.Question, error)
	DeleteQuestion(ctx context.Context, questionID uint, actor models.Actor) error

	Publish(ctx context.Context, examID uint, actor models.Actor) (*models.Exam, error)
	Close(ctx context.Context, examID uint, actor models.Actor) (*models.Exam, error)
}

// AttemptService manages a student's single answer sheet per exam
type AttemptService interface {
	ListAvailable(ctx context.Context, actor models.Actor) ([]*StudentExamView, error)
	GetExamForStudent(ctx context.Context, examID uint, actor models.Actor) (*StudentExamView, error)

	Start(ctx context.Context, examID uint, actor models.Actor) (*models.AnswerSheet, error)
	GetActive(ctx context.Context, actor models.Actor) (*models.AnswerSheet, error)
	GetAnswerSheet(ctx context.Context, sheetID uint, actor models.Actor) (*models.AnswerSheet, error)

	Submit(ctx context.Context, sheetID uint, actor models.Actor) (*models.AnswerSheet, error)
	// SubmitExpired force-submits one sheet whose deadline passed and reports whether
	// this call moved it out of IN_PROGRESS
	SubmitExpired(ctx context.Context, sheetID uint) (*models.AnswerSheet, bool, error)
}

// AnswerService captures student responses while an attempt is open
type AnswerService interface {
	Save(ctx context.Context, answerID uint, req *SaveAnswerRequest, actor models.Actor) (*models.Answer, error)
	SelectOption(ctx context.Context, answerID, optionID uint, actor models.Actor) (*models.Answer, error)
	AttachImage(ctx context.Context, answerID uint, image *ImageUpload, actor models.Actor) (*models.Answer, error)
	RemoveImage(ctx context.Context, answerID uint, imageURL string, actor models.Actor) (*models.Answer, error)
}

// GradingService covers the faculty side of a submitted sheet
type GradingService interface {
	EvaluationQueue(ctx context.Context, examID *uint, actor models.Actor, limit, offset int) (*EvaluationQueueResponse, error)
	GetAnswerSheetDetails(ctx context.Context, sheetID uint, actor models.Actor) (*AnswerSheetDetails, error)

	GradeAnswer(ctx context.Context, answerID uint, req *GradeAnswerRequest, actor models.Actor) (*models.Answer, error)
	AutoGrade(ctx context.Context, sheetID uint, actor models.Actor) (*models.AnswerSheet, error)
	SetOverallFeedback(ctx context.Context, sheetID uint, req *FeedbackRequest, actor models.Actor) (*models.AnswerSheet, error)
	SubmitGrading(ctx context.Context, sheetID uint, actor models.Actor) (*models.AnswerSheet, error)
}

// PerformanceService derives percentages and batch ranks from graded sheets
type PerformanceService interface {
	// Recompute upserts the sheet's metrics and re-ranks its batch inside tx
	Recompute(ctx context.Context, tx *gorm.DB, sheet *models.AnswerSheet, exam *models.Exam, now time.Time) (*RecomputeResult, error)

	GetStudentPerformance(ctx context.Context, studentID string, actor models.Actor) (*PerformanceData, error)
	GetComparison(ctx context.Context, studentID string, actor models.Actor) (*PerformanceComparison, error)
	GetExamLeaderboard(ctx context.Context, examID uint, actor models.Actor) ([]ExamPerformanceRow, error)
}

// ExportService renders exam results as a spreadsheet
type ExportService interface {
	ExportExamResults(ctx context.Context, examID uint, format ExportFormat, actor models.Actor) (*ExportFile, error)
}

// ServiceManager wires every service over one repository
type ServiceManager interface {
	Exam() ExamService
	Attempt() AttemptService
	Answer() AnswerService
	Grading() GradingService
	Performance() PerformanceService
	Export() ExportService
	Sweeper() *ExpirySweeper
	Repository() repositories.Repository
}
