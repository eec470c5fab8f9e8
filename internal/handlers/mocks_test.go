package handlers

import (
	"context"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// get returns the i-th mocked return value, tolerating a nil registration
func get[T any](args mock.Arguments, i int) T {
	var zero T
	if v, ok := args.Get(i).(T); ok {
		return v
	}
	return zero
}

// ===== EXAM =====

type mockExamService struct{ mock.Mock }

func (m *mockExamService) Create(ctx context.Context, req *services.CreateExamRequest, actor models.Actor) (*models.Exam, error) {
	args := m.Called(ctx, req, actor)
	return get[*models.Exam](args, 0), args.Error(1)
}

func (m *mockExamService) Update(ctx context.Context, examID uint, req *services.UpdateExamRequest, actor models.Actor) (*models.Exam, error) {
	args := m.Called(ctx, examID, req, actor)
	return get[*models.Exam](args, 0), args.Error(1)
}

func (m *mockExamService) GetByID(ctx context.Context, examID uint, actor models.Actor) (*models.Exam, error) {
	args := m.Called(ctx, examID, actor)
	return get[*models.Exam](args, 0), args.Error(1)
}

func (m *mockExamService) ListByFaculty(ctx context.Context, actor models.Actor, limit, offset int) ([]*models.Exam, int64, error) {
	args := m.Called(ctx, actor, limit, offset)
	return get[[]*models.Exam](args, 0), get[int64](args, 1), args.Error(2)
}

func (m *mockExamService) ListBatches(ctx context.Context, actor models.Actor) ([]*repositories.BatchSummary, error) {
	args := m.Called(ctx, actor)
	return get[[]*repositories.BatchSummary](args, 0), args.Error(1)
}

func (m *mockExamService) AddQuestion(ctx context.Context, examID uint, req *services.CreateQuestionRequest, actor models.Actor) (*models.Question, error) {
	args := m.Called(ctx, examID, req, actor)
	return get[*models.Question](args, 0), args.Error(1)
}

func (m *mockExamService) DeleteQuestion(ctx context.Context, questionID uint, actor models.Actor) error {
	return m.Called(ctx, questionID, actor).Error(0)
}

func (m *mockExamService) Publish(ctx context.Context, examID uint, actor models.Actor) (*models.Exam, error) {
	args := m.Called(ctx, examID, actor)
	return get[*models.Exam](args, 0), args.Error(1)
}

func (m *mockExamService) Close(ctx context.Context, examID uint, actor models.Actor) (*models.Exam, error) {
	args := m.Called(ctx, examID, actor)
	return get[*models.Exam](args, 0), args.Error(1)
}

// ===== ATTEMPT =====

type mockAttemptService struct{ mock.Mock }

func (m *mockAttemptService) ListAvailable(ctx context.Context, actor models.Actor) ([]*services.StudentExamView, error) {
	args := m.Called(ctx, actor)
	return get[[]*services.StudentExamView](args, 0), args.Error(1)
}

func (m *mockAttemptService) GetExamForStudent(ctx context.Context, examID uint, actor models.Actor) (*services.StudentExamView, error) {
	args := m.Called(ctx, examID, actor)
	return get[*services.StudentExamView](args, 0), args.Error(1)
}

func (m *mockAttemptService) Start(ctx context.Context, examID uint, actor models.Actor) (*models.AnswerSheet, error) {
	args := m.Called(ctx, examID, actor)
	return get[*models.AnswerSheet](args, 0), args.Error(1)
}

func (m *mockAttemptService) GetActive(ctx context.Context, actor models.Actor) (*models.AnswerSheet, error) {
	args := m.Called(ctx, actor)
	return get[*models.AnswerSheet](args, 0), args.Error(1)
}

func (m *mockAttemptService) GetAnswerSheet(ctx context.Context, sheetID uint, actor models.Actor) (*models.AnswerSheet, error) {
	args := m.Called(ctx, sheetID, actor)
	return get[*models.AnswerSheet](args, 0), args.Error(1)
}

func (m *mockAttemptService) Submit(ctx context.Context, sheetID uint, actor models.Actor) (*models.AnswerSheet, error) {
	args := m.Called(ctx, sheetID, actor)
	return get[*models.AnswerSheet](args, 0), args.Error(1)
}

func (m *mockAttemptService) SubmitExpired(ctx context.Context, sheetID uint) (*models.AnswerSheet, bool, error) {
	args := m.Called(ctx, sheetID)
	return get[*models.AnswerSheet](args, 0), args.Bool(1), args.Error(2)
}

// ===== ANSWER =====

type mockAnswerService struct{ mock.Mock }

func (m *mockAnswerService) Save(ctx context.Context, answerID uint, req *services.SaveAnswerRequest, actor models.Actor) (*models.Answer, error) {
	args := m.Called(ctx, answerID, req, actor)
	return get[*models.Answer](args, 0), args.Error(1)
}

func (m *mockAnswerService) SelectOption(ctx context.Context, answerID, optionID uint, actor models.Actor) (*models.Answer, error) {
	args := m.Called(ctx, answerID, optionID, actor)
	return get[*models.Answer](args, 0), args.Error(1)
}

func (m *mockAnswerService) AttachImage(ctx context.Context, answerID uint, image *services.ImageUpload, actor models.Actor) (*models.Answer, error) {
	args := m.Called(ctx, answerID, image, actor)
	return get[*models.Answer](args, 0), args.Error(1)
}

func (m *mockAnswerService) RemoveImage(ctx context.Context, answerID uint, imageURL string, actor models.Actor) (*models.Answer, error) {
	args := m.Called(ctx, answerID, imageURL, actor)
	return get[*models.Answer](args, 0), args.Error(1)
}

// ===== GRADING =====

type mockGradingService struct{ mock.Mock }

func (m *mockGradingService) EvaluationQueue(ctx context.Context, examID *uint, actor models.Actor, limit, offset int) (*services.EvaluationQueueResponse, error) {
	args := m.Called(ctx, examID, actor, limit, offset)
	return get[*services.EvaluationQueueResponse](args, 0), args.Error(1)
}

func (m *mockGradingService) GetAnswerSheetDetails(ctx context.Context, sheetID uint, actor models.Actor) (*services.AnswerSheetDetails, error) {
	args := m.Called(ctx, sheetID, actor)
	return get[*services.AnswerSheetDetails](args, 0), args.Error(1)
}

func (m *mockGradingService) GradeAnswer(ctx context.Context, answerID uint, req *services.GradeAnswerRequest, actor models.Actor) (*models.Answer, error) {
	args := m.Called(ctx, answerID, req, actor)
	return get[*models.Answer](args, 0), args.Error(1)
}

func (m *mockGradingService) AutoGrade(ctx context.Context, sheetID uint, actor models.Actor) (*models.AnswerSheet, error) {
	args := m.Called(ctx, sheetID, actor)
	return get[*models.AnswerSheet](args, 0), args.Error(1)
}

func (m *mockGradingService) SetOverallFeedback(ctx context.Context, sheetID uint, req *services.FeedbackRequest, actor models.Actor) (*models.AnswerSheet, error) {
	args := m.Called(ctx, sheetID, req, actor)
	return get[*models.AnswerSheet](args, 0), args.Error(1)
}

func (m *mockGradingService) SubmitGrading(ctx context.Context, sheetID uint, actor models.Actor) (*models.AnswerSheet, error) {
	args := m.Called(ctx, sheetID, actor)
	return get[*models.AnswerSheet](args, 0), args.Error(1)
}

// ===== PERFORMANCE / EXPORT =====

type mockPerformanceService struct{ mock.Mock }

func (m *mockPerformanceService) Recompute(ctx context.Context, tx *gorm.DB, sheet *models.AnswerSheet, exam *models.Exam, now time.Time) (*services.RecomputeResult, error) {
	args := m.Called(ctx, tx, sheet, exam, now)
	return get[*services.RecomputeResult](args, 0), args.Error(1)
}

func (m *mockPerformanceService) GetStudentPerformance(ctx context.Context, studentID string, actor models.Actor) (*services.PerformanceData, error) {
	args := m.Called(ctx, studentID, actor)
	return get[*services.PerformanceData](args, 0), args.Error(1)
}

func (m *mockPerformanceService) GetComparison(ctx context.Context, studentID string, actor models.Actor) (*services.PerformanceComparison, error) {
	args := m.Called(ctx, studentID, actor)
	return get[*services.PerformanceComparison](args, 0), args.Error(1)
}

func (m *mockPerformanceService) GetExamLeaderboard(ctx context.Context, examID uint, actor models.Actor) ([]services.ExamPerformanceRow, error) {
	args := m.Called(ctx, examID, actor)
	return get[[]services.ExamPerformanceRow](args, 0), args.Error(1)
}

type mockExportService struct{ mock.Mock }

func (m *mockExportService) ExportExamResults(ctx context.Context, examID uint, format services.ExportFormat, actor models.Actor) (*services.ExportFile, error) {
	args := m.Called(ctx, examID, format, actor)
	return get[*services.ExportFile](args, 0), args.Error(1)
}

// ===== MANAGER =====

type mockServiceManager struct {
	exam        *mockExamService
	attempt     *mockAttemptService
	answer      *mockAnswerService
	grading     *mockGradingService
	performance *mockPerformanceService
	export      *mockExportService
}

func newMockServiceManager() *mockServiceManager {
	return &mockServiceManager{
		exam:        &mockExamService{},
		attempt:     &mockAttemptService{},
		answer:      &mockAnswerService{},
		grading:     &mockGradingService{},
		performance: &mockPerformanceService{},
		export:      &mockExportService{},
	}
}

func (m *mockServiceManager) Exam() services.ExamService               { return m.exam }
func (m *mockServiceManager) Attempt() services.AttemptService         { return m.attempt }
func (m *mockServiceManager) Answer() services.AnswerService           { return m.answer }
func (m *mockServiceManager) Grading() services.GradingService         { return m.grading }
func (m *mockServiceManager) Performance() services.PerformanceService { return m.performance }
func (m *mockServiceManager) Export() services.ExportService           { return m.export }
func (m *mockServiceManager) Sweeper() *services.ExpirySweeper         { return nil }
func (m *mockServiceManager) Repository() repositories.Repository      { return nil }
