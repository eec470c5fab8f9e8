package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/gin-gonic/gin"
)

const (
	imageFormField = "image"

	// DefaultMaxImageBytes applies when no upload limit is configured
	DefaultMaxImageBytes int64 = 5 << 20
	// room for multipart boundaries and part headers on top of the file itself
	multipartOverhead int64 = 64 << 10
)

// StudentHandler serves the exam catalogue, attempts and answer capture for students
type StudentHandler struct {
	BaseHandler
	attemptService     services.AttemptService
	answerService      services.AnswerService
	performanceService services.PerformanceService
	maxImageBytes      int64
}

type RemoveImageRequest struct {
	ImageURL string `json:"image_url"`
}

func NewStudentHandler(
	attemptService services.AttemptService,
	answerService services.AnswerService,
	performanceService services.PerformanceService,
	maxImageBytes int64,
	logger utils.Logger,
) *StudentHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = DefaultMaxImageBytes
	}
	return &StudentHandler{
		BaseHandler:        NewBaseHandler(logger),
		attemptService:     attemptService,
		answerService:      answerService,
		performanceService: performanceService,
		maxImageBytes:      maxImageBytes,
	}
}

// ListExams lists published exams of the student's batches
// @Summary Available exams
// @Tags student
// @Produce json
// @Success 200 {object} SuccessResponse{data=[]services.StudentExamView}
// @Router /student/exams [get]
func (h *StudentHandler) ListExams(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	exams, err := h.attemptService.ListAvailable(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Exams retrieved successfully", exams, "count", len(exams))
}

// GetActiveAttempt returns the student's in-progress sheet, if any
// @Summary Active attempt
// @Tags student
// @Produce json
// @Success 200 {object} SuccessResponse{data=models.AnswerSheet}
// @Router /student/exams/active [get]
func (h *StudentHandler) GetActiveAttempt(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	sheet, err := h.attemptService.GetActive(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Active attempt retrieved", sheet)
}

// GetExam returns an exam without answer keys
// @Summary Get exam
// @Tags student
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse{data=services.StudentExamView}
// @Router /student/exams/{id} [get]
func (h *StudentHandler) GetExam(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	exam, err := h.attemptService.GetExamForStudent(c.Request.Context(), examID, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Exam retrieved successfully", exam, "exam_id", examID)
}

// StartExam opens the student's answer sheet, returning the existing one on repeat calls
// @Summary Start exam
// @Tags student
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse{data=models.AnswerSheet}
// @Failure 403 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /student/exams/{id}/start [post]
func (h *StudentHandler) StartExam(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Starting exam", "exam_id", examID)

	sheet, err := h.attemptService.Start(c.Request.Context(), examID, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Exam started", sheet, "exam_id", examID, "answer_sheet_id", sheet.ID)
}

// GetAnswerSheet returns the student's own sheet
// @Summary Get answer sheet
// @Tags student
// @Produce json
// @Param id path uint true "Answer sheet ID"
// @Success 200 {object} SuccessResponse{data=models.AnswerSheet}
// @Router /student/answer-sheets/{id} [get]
func (h *StudentHandler) GetAnswerSheet(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	sheetID := h.parseIDParam(c, "id")
	if sheetID == 0 {
		return
	}

	sheet, err := h.attemptService.GetAnswerSheet(c.Request.Context(), sheetID, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Answer sheet retrieved successfully", sheet, "answer_sheet_id", sheetID)
}

// SubmitAnswerSheet submits the sheet and auto grades its objective answers
// @Summary Submit answer sheet
// @Tags student
// @Produce json
// @Param id path uint true "Answer sheet ID"
// @Success 200 {object} SuccessResponse{data=models.AnswerSheet}
// @Router /student/answer-sheets/{id}/submit [post]
func (h *StudentHandler) SubmitAnswerSheet(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	sheetID := h.parseIDParam(c, "id")
	if sheetID == 0 {
		return
	}

	h.LogRequest(c, "Submitting answer sheet", "answer_sheet_id", sheetID)

	sheet, err := h.attemptService.Submit(c.Request.Context(), sheetID, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Answer sheet submitted", sheet, "answer_sheet_id", sheetID)
}

// ===== ANSWERS =====

// SaveAnswer stores text and/or a selected option
// @Summary Save answer
// @Tags student
// @Accept json
// @Produce json
// @Param id path uint true "Answer ID"
// @Param answer body services.SaveAnswerRequest true "Answer"
// @Success 200 {object} SuccessResponse{data=models.Answer}
// @Failure 422 {object} ErrorResponse
// @Router /student/answers/{id} [put]
func (h *StudentHandler) SaveAnswer(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	answerID := h.parseIDParam(c, "id")
	if answerID == 0 {
		return
	}

	var req services.SaveAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	answer, err := h.answerService.Save(c.Request.Context(), answerID, &req, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Answer saved", answer, "answer_id", answerID)
}

// AttachImage uploads an image for a descriptive answer
// @Summary Attach image
// @Tags student
// @Accept multipart/form-data
// @Produce json
// @Param id path uint true "Answer ID"
// @Param image formData file true "Image file"
// @Success 201 {object} SuccessResponse{data=models.Answer}
// @Failure 413 {object} ErrorResponse
// @Router /student/answers/{id}/images [post]
func (h *StudentHandler) AttachImage(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	answerID := h.parseIDParam(c, "id")
	if answerID == 0 {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxImageBytes+multipartOverhead)

	header, err := c.FormFile(imageFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.imageTooLarge(c, err)
			return
		}
		h.RespondWithError(c, http.StatusBadRequest, CodeValidationFailed, "Image file is required", err)
		return
	}
	if header.Size > h.maxImageBytes {
		h.imageTooLarge(c, nil)
		return
	}
	file, err := header.Open()
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidationFailed, "Unable to read image", err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidationFailed, "Unable to read image", err)
		return
	}
	if int64(len(data)) > h.maxImageBytes {
		h.imageTooLarge(c, nil)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	answer, err := h.answerService.AttachImage(c.Request.Context(), answerID, &services.ImageUpload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Data:        data,
	}, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusCreated, "Image attached", answer, "answer_id", answerID)
}

func (h *StudentHandler) imageTooLarge(c *gin.Context, err error) {
	h.RespondWithError(c, http.StatusRequestEntityTooLarge, CodeValidationFailed, "Image exceeds the maximum size", err,
		fmt.Sprintf("images are limited to %d bytes", h.maxImageBytes))
}

// RemoveImage detaches an image reference from an answer
// @Summary Remove image
// @Tags student
// @Accept json
// @Produce json
// @Param id path uint true "Answer ID"
// @Param url query string false "Image URL, alternatively sent as image_url in the body"
// @Success 200 {object} SuccessResponse{data=models.Answer}
// @Router /student/answers/{id}/images [delete]
func (h *StudentHandler) RemoveImage(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	answerID := h.parseIDParam(c, "id")
	if answerID == 0 {
		return
	}

	imageURL := c.Query("url")
	if imageURL == "" {
		var req RemoveImageRequest
		_ = c.ShouldBindJSON(&req)
		imageURL = req.ImageURL
	}
	if imageURL == "" {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidationFailed, "Image URL is required", nil)
		return
	}

	answer, err := h.answerService.RemoveImage(c.Request.Context(), answerID, imageURL, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Image removed", answer, "answer_id", answerID)
}

// ===== PERFORMANCE =====

// GetPerformance returns the caller's performance report
// @Summary My performance
// @Tags student
// @Produce json
// @Success 200 {object} SuccessResponse{data=services.PerformanceData}
// @Router /student/performance [get]
func (h *StudentHandler) GetPerformance(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	report, err := h.performanceService.GetStudentPerformance(c.Request.Context(), actor.UserID, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Performance retrieved successfully", report)
}

// GetComparison compares the caller with their batch averages
// @Summary Batch comparison
// @Tags student
// @Produce json
// @Success 200 {object} SuccessResponse{data=services.PerformanceComparison}
// @Router /student/performance/comparison [get]
func (h *StudentHandler) GetComparison(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	comparison, err := h.performanceService.GetComparison(c.Request.Context(), actor.UserID, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Comparison retrieved successfully", comparison)
}
