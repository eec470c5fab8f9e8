package handlers

import (
	"fmt"
	"net/http"

	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// FacultyHandler serves exam authoring, grading and results for teachers and admins
type FacultyHandler struct {
	BaseHandler
	examService        services.ExamService
	gradingService     services.GradingService
	performanceService services.PerformanceService
	exportService      services.ExportService
}

func NewFacultyHandler(
	examService services.ExamService,
	gradingService services.GradingService,
	performanceService services.PerformanceService,
	exportService services.ExportService,
	logger utils.Logger,
) *FacultyHandler {
	return &FacultyHandler{
		BaseHandler:        NewBaseHandler(logger),
		examService:        examService,
		gradingService:     gradingService,
		performanceService: performanceService,
		exportService:      exportService,
	}
}

// ===== EXAMS =====

// CreateExam creates a draft exam
// @Summary Create exam
// @Description Creates a DRAFT exam for one batch
// @Tags faculty
// @Accept json
// @Produce json
// @Param exam body services.CreateExamRequest true "Exam data"
// @Success 201 {object} SuccessResponse{data=models.Exam}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /faculty/exams [post]
func (h *FacultyHandler) CreateExam(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req services.CreateExamRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating exam", "title", req.Title, "batch_id", req.BatchID)

	exam, err := h.examService.Create(c.Request.Context(), &req, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusCreated, "Exam created successfully", exam, "exam_id", exam.ID)
}

// ListBatches lists the batches in the caller's organization
// @Summary List batches
// @Tags faculty
// @Produce json
// @Success 200 {object} SuccessResponse{data=[]repositories.BatchSummary}
// @Router /faculty/batches [get]
func (h *FacultyHandler) ListBatches(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	batches, err := h.examService.ListBatches(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Batches retrieved successfully", batches, "count", len(batches))
}

// ListExams lists the caller's exams, newest first
// @Summary List exams
// @Tags faculty
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} SuccessResponse{data=ListResponse}
// @Router /faculty/exams [get]
func (h *FacultyHandler) ListExams(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	limit, offset := parsePagination(c)

	exams, total, err := h.examService.ListByFaculty(c.Request.Context(), actor, limit, offset)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Exams retrieved successfully", ListResponse{
		Items:  exams,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, "count", len(exams))
}

// GetExam returns an exam with its questions and options
// @Summary Get exam
// @Tags faculty
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse{data=models.Exam}
// @Failure 404 {object} ErrorResponse
// @Router /faculty/exams/{id} [get]
func (h *FacultyHandler) GetExam(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Exam retrieved successfully", exam, "exam_id", examID)
}

// UpdateExam edits a draft exam
// @Summary Update exam
// @Tags faculty
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param exam body services.UpdateExamRequest true "Fields to change"
// @Success 200 {object} SuccessResponse{data=models.Exam}
// @Failure 422 {object} ErrorResponse
// @Router /faculty/exams/{id} [put]
func (h *FacultyHandler) UpdateExam(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	var req services.UpdateExamRequest
	if !h.bindJSON(c, &req) {
		return
	}

	exam, err := h.examService.Update(c.Request.Context(), examID, &req, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Exam updated successfully", exam, "exam_id", examID)
}

// PublishExam moves a draft exam to PUBLISHED
// @Summary Publish exam
// @Tags faculty
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse{data=models.Exam}
// @Failure 422 {object} ErrorResponse
// @Router /faculty/exams/{id}/publish [post]
func (h *FacultyHandler) PublishExam(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Publishing exam", "exam_id", examID)

	exam, err := h.examService.Publish(c.Request.Context(), examID, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Exam published successfully", exam, "exam_id", examID)
}

// CloseExam moves a published exam to CLOSED
// @Summary Close exam
// @Tags faculty
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse{data=models.Exam}
// @Failure 422 {object} ErrorResponse
// @Router /faculty/exams/{id}/close [post]
func (h *FacultyHandler) CloseExam(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Closing exam", "exam_id", examID)

	exam, err := h.examService.Close(c.Request.Context(), examID, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Exam closed successfully", exam, "exam_id", examID)
}

// ===== QUESTIONS =====

// AddQuestion adds a question with its options to a draft exam
// @Summary Add question
// @Tags faculty
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param question body services.CreateQuestionRequest true "Question data"
// @Success 201 {object} SuccessResponse{data=models.Question}
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /faculty/exams/{id}/questions [post]
func (h *FacultyHandler) AddQuestion(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	var req services.CreateQuestionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	question, err := h.examService.AddQuestion(c.Request.Context(), examID, &req, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusCreated, "Question added successfully", question,
		"exam_id", examID, "question_id", question.ID)
}

// DeleteQuestion removes a question from a draft exam
// @Summary Delete question
// @Tags faculty
// @Param id path uint true "Question ID"
// @Success 200 {object} SuccessResponse
// @Router /faculty/questions/{id} [delete]
func (h *FacultyHandler) DeleteQuestion(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	questionID := h.parseIDParam(c, "id")
	if questionID == 0 {
		return
	}

	if err := h.examService.DeleteQuestion(c.Request.Context(), questionID, actor); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Question deleted successfully", nil, "question_id", questionID)
}

// ===== GRADING =====

// EvaluationQueue lists submitted sheets waiting for grading, oldest first
// @Summary Evaluation queue
// @Tags grading
// @Produce json
// @Param exam_id query uint false "Restrict to one exam"
// @Success 200 {object} SuccessResponse{data=services.EvaluationQueueResponse}
// @Router /faculty/evaluation-queue [get]
func (h *FacultyHandler) EvaluationQueue(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	examID, ok := h.optionalUintQuery(c, "exam_id")
	if !ok {
		return
	}
	limit, offset := parsePagination(c)

	queue, err := h.gradingService.EvaluationQueue(c.Request.Context(), examID, actor, limit, offset)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Evaluation queue retrieved successfully", queue)
}

// GetAnswerSheet returns a sheet with every answer and its question
// @Summary Answer sheet details
// @Tags grading
// @Produce json
// @Param id path uint true "Answer sheet ID"
// @Success 200 {object} SuccessResponse{data=services.AnswerSheetDetails}
// @Router /faculty/answer-sheets/{id} [get]
func (h *FacultyHandler) GetAnswerSheet(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	sheetID := h.parseIDParam(c, "id")
	if sheetID == 0 {
		return
	}

	details, err := h.gradingService.GetAnswerSheetDetails(c.Request.Context(), sheetID, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Answer sheet retrieved successfully", details, "answer_sheet_id", sheetID)
}

// GradeAnswer records manual points for one answer
// @Summary Grade answer
// @Tags grading
// @Accept json
// @Produce json
// @Param id path uint true "Answer ID"
// @Param grade body services.GradeAnswerRequest true "Points and feedback"
// @Success 200 {object} SuccessResponse{data=models.Answer}
// @Failure 422 {object} ErrorResponse
// @Router /faculty/answers/{id}/grade [put]
func (h *FacultyHandler) GradeAnswer(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	answerID := h.parseIDParam(c, "id")
	if answerID == 0 {
		return
	}

	var req services.GradeAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if req.Points == nil {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidationFailed, "Invalid request payload", nil, "points is required")
		return
	}

	h.LogRequest(c, "Grading answer", "answer_id", answerID, "points", *req.Points)

	answer, err := h.gradingService.GradeAnswer(c.Request.Context(), answerID, &req, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Answer graded successfully", answer, "answer_id", answerID)
}

// SetFeedback stores overall feedback on a submitted sheet
// @Summary Overall feedback
// @Tags grading
// @Accept json
// @Produce json
// @Param id path uint true "Answer sheet ID"
// @Param feedback body services.FeedbackRequest true "Feedback"
// @Success 200 {object} SuccessResponse{data=models.AnswerSheet}
// @Router /faculty/answer-sheets/{id}/feedback [put]
func (h *FacultyHandler) SetFeedback(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	sheetID := h.parseIDParam(c, "id")
	if sheetID == 0 {
		return
	}

	var req services.FeedbackRequest
	if !h.bindJSON(c, &req) {
		return
	}

	sheet, err := h.gradingService.SetOverallFeedback(c.Request.Context(), sheetID, &req, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Feedback saved successfully", sheet, "answer_sheet_id", sheetID)
}

// AutoGrade scores the objective answers of a submitted sheet
// @Summary Auto grade
// @Tags grading
// @Produce json
// @Param id path uint true "Answer sheet ID"
// @Success 200 {object} SuccessResponse{data=models.AnswerSheet}
// @Router /faculty/answer-sheets/{id}/auto-grade [post]
func (h *FacultyHandler) AutoGrade(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	sheetID := h.parseIDParam(c, "id")
	if sheetID == 0 {
		return
	}

	sheet, err := h.gradingService.AutoGrade(c.Request.Context(), sheetID, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Answer sheet auto graded", sheet, "answer_sheet_id", sheetID)
}

// SubmitGrading finalizes a fully graded sheet
// @Summary Submit grading
// @Tags grading
// @Produce json
// @Param id path uint true "Answer sheet ID"
// @Success 200 {object} SuccessResponse{data=models.AnswerSheet}
// @Failure 422 {object} ErrorResponse
// @Router /faculty/answer-sheets/{id}/submit-grading [post]
func (h *FacultyHandler) SubmitGrading(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	sheetID := h.parseIDParam(c, "id")
	if sheetID == 0 {
		return
	}

	h.LogRequest(c, "Submitting grading", "answer_sheet_id", sheetID)

	sheet, err := h.gradingService.SubmitGrading(c.Request.Context(), sheetID, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Grading submitted successfully", sheet, "answer_sheet_id", sheetID)
}

// ===== RESULTS =====

// Leaderboard lists an exam's performance rows by rank
// @Summary Exam leaderboard
// @Tags results
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse{data=[]services.ExamPerformanceRow}
// @Router /faculty/exams/{id}/leaderboard [get]
func (h *FacultyHandler) Leaderboard(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	rows, err := h.performanceService.GetExamLeaderboard(c.Request.Context(), examID, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Leaderboard retrieved successfully", rows, "exam_id", examID)
}

// StudentPerformance returns one student's report for faculty of the same organization
// @Summary Student performance
// @Tags results
// @Produce json
// @Param student_id path string true "Student ID"
// @Success 200 {object} SuccessResponse{data=services.PerformanceData}
// @Router /faculty/students/{student_id}/performance [get]
func (h *FacultyHandler) StudentPerformance(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	studentID := c.Param("student_id")

	report, err := h.performanceService.GetStudentPerformance(c.Request.Context(), studentID, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Performance retrieved successfully", report, "student_id", studentID)
}

// ExportResults downloads an exam's results as xlsx or csv
// @Summary Export results
// @Tags results
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce text/csv
// @Param id path uint true "Exam ID"
// @Param format query string false "xlsx or csv"
// @Success 200 {file} file
// @Router /faculty/exams/{id}/results/export [get]
func (h *FacultyHandler) ExportResults(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	format := services.ExportFormat(c.Query("format"))

	file, err := h.exportService.ExportExamResults(c.Request.Context(), examID, format, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogInfo(c, "Exam results exported", "exam_id", examID, "filename", file.Filename, "bytes", len(file.Data))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
