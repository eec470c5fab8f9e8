package services

import (
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

// ===== EXAM REQUESTS =====

type CreateExamRequest struct {
	Title           string  `json:"title" validate:"required,min=1,max=200"`
	Instructions    *string `json:"instructions" validate:"omitempty,max=5000"`
	DurationMinutes int     `json:"duration_minutes" validate:"required,min=1,max=600"`
	BatchID         uint    `json:"batch_id" validate:"required"`
}

type UpdateExamRequest struct {
	Title           *string `json:"title" validate:"omitempty,min=1,max=200"`
	Instructions    *string `json:"instructions" validate:"omitempty,max=5000"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,min=1,max=600"`
}

type CreateOptionRequest struct {
	Text        string `json:"option_text" validate:"required"`
	IsCorrect   bool   `json:"is_correct"`
	OrderNumber int    `json:"order_number" validate:"min=0"`
}

type CreateQuestionRequest struct {
	Type        models.QuestionType   `json:"type" validate:"required,question_type"`
	Text        string                `json:"question_text" validate:"required"`
	Points      int                   `json:"points" validate:"required,min=1"`
	OrderNumber int                   `json:"order_number" validate:"min=0"`
	Options     []CreateOptionRequest `json:"options" validate:"omitempty,dive"`
}

// ===== ANSWER REQUESTS =====

// SaveAnswerRequest carries the student's response; either field may be omitted
type SaveAnswerRequest struct {
	AnswerText       *string `json:"answer_text" validate:"omitempty,max=20000"`
	SelectedOptionID *uint   `json:"selected_option_id"`
}

// ImageUpload is an answer image already read from the multipart form
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// GradeAnswerRequest awards manual points; points must be present, zero included
type GradeAnswerRequest struct {
	Points   *int    `json:"points" validate:"required,min=0"`
	Feedback *string `json:"feedback" validate:"omitempty,max=5000"`
}

type FeedbackRequest struct {
	Feedback *string `json:"feedback" validate:"omitempty,max=5000"`
}

// ===== STUDENT VIEWS =====

type StudentOption struct {
	ID          uint   `json:"id"`
	Text        string `json:"option_text"`
	OrderNumber int    `json:"order_number"`
}

type StudentQuestion struct {
	ID          uint                `json:"id"`
	Type        models.QuestionType `json:"type"`
	Text        string              `json:"question_text"`
	Points      int                 `json:"points"`
	OrderNumber int                 `json:"order_number"`
	Options     []StudentOption     `json:"options,omitempty"`
}

// StudentExamView is an exam as a student may see it; correct options are never exposed
type StudentExamView struct {
	ID              uint              `json:"id"`
	Title           string            `json:"title"`
	Instructions    *string           `json:"instructions"`
	DurationMinutes int               `json:"duration_minutes"`
	Status          models.ExamStatus `json:"status"`
	TotalPoints     int               `json:"total_points"`
	QuestionsCount  int               `json:"questions_count"`
	PublishedAt     *time.Time        `json:"published_at"`
	Questions       []StudentQuestion `json:"questions,omitempty"`
}

func newStudentExamView(exam *models.Exam, withQuestions bool) *StudentExamView {
	view := &StudentExamView{
		ID:              exam.ID,
		Title:           exam.Title,
		Instructions:    exam.Instructions,
		DurationMinutes: exam.DurationMinutes,
		Status:          exam.Status,
		TotalPoints:     exam.TotalPoints,
		QuestionsCount:  exam.QuestionsCount,
		PublishedAt:     exam.PublishedAt,
	}
	if !withQuestions {
		return view
	}
	for _, q := range exam.Questions {
		sq := StudentQuestion{
			ID:          q.ID,
			Type:        q.Type,
			Text:        q.Text,
			Points:      q.Points,
			OrderNumber: q.OrderNumber,
		}
		for _, o := range q.Options {
			sq.Options = append(sq.Options, StudentOption{ID: o.ID, Text: o.Text, OrderNumber: o.OrderNumber})
		}
		view.Questions = append(view.Questions, sq)
	}
	return view
}

// ===== GRADING VIEWS =====

type AnswerSheetSummary struct {
	ID             uint                     `json:"id"`
	ExamID         uint                     `json:"exam_id"`
	ExamTitle      string                   `json:"exam_title"`
	StudentID      string                   `json:"student_id"`
	StudentName    string                   `json:"student_name"`
	SubmittedAt    *time.Time               `json:"submitted_at"`
	Status         models.AnswerSheetStatus `json:"status"`
	TotalPoints    int                      `json:"total_points"`
	ObtainedPoints *int                     `json:"obtained_points"`
	PendingAnswers int                      `json:"pending_answers"`
}

type EvaluationQueueResponse struct {
	Items  []AnswerSheetSummary `json:"items"`
	Total  int64                `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// AnswerDetail pairs an answer with the question it responds to
type AnswerDetail struct {
	models.Answer
	Question models.Question `json:"question"`
}

type AnswerSheetDetails struct {
	models.AnswerSheet
	ExamTitle   string         `json:"exam_title"`
	StudentName string         `json:"student_name"`
	Answers     []AnswerDetail `json:"answers"`
}

// ===== PERFORMANCE VIEWS =====

type ExamPerformance struct {
	ExamID       uint      `json:"exam_id"`
	ExamName     string    `json:"exam_name"`
	Obtained     int       `json:"obtained"`
	Total        int       `json:"total"`
	Percentage   float64   `json:"percentage"`
	Rank         int       `json:"rank"`
	CalculatedAt time.Time `json:"calculated_at"`
}

type PerformanceData struct {
	StudentID         string            `json:"student_id"`
	StudentName       string            `json:"student_name"`
	TotalExams        int               `json:"total_exams"`
	AveragePercentage float64           `json:"average_percentage"`
	CurrentRank       int               `json:"current_rank"`
	HighestScore      int               `json:"highest_score"`
	Exams             []ExamPerformance `json:"exams"`
}

type ExamComparison struct {
	ExamID            uint    `json:"exam_id"`
	ExamName          string  `json:"exam_name"`
	StudentObtained   int     `json:"student_obtained"`
	TotalMarks        int     `json:"total_marks"`
	StudentPercentage float64 `json:"student_percentage"`
	BatchAverage      float64 `json:"batch_average"`
}

type PerformanceComparison struct {
	TotalExams int              `json:"total_exams"`
	Exams      []ExamComparison `json:"exams"`
}

type ExamPerformanceRow struct {
	StudentID     string  `json:"student_id"`
	StudentName   string  `json:"student_name"`
	ObtainedMarks int     `json:"obtained_marks"`
	TotalMarks    int     `json:"total_marks"`
	Percentage    float64 `json:"percentage"`
	BatchRank     int     `json:"batch_rank"`
}

// RecomputeResult describes the batch ranking written for one graded sheet
type RecomputeResult struct {
	Metrics      models.PerformanceMetrics
	RankedPeers  int
	BatchAverage float64
	PeerIDs      []string
}

// ===== EXPORT =====

type ExportFormat string

const (
	ExportXLSX ExportFormat = "xlsx"
	ExportCSV  ExportFormat = "csv"
)

type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
