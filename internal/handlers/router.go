package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/exam-service/internal/auth"
	"github.com/SAP-F-2025/exam-service/internal/metrics"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/pkg/tracing"
	"github.com/gin-gonic/gin"
)

const serviceName = "exam-service"

type HandlerManager struct {
	facultyHandler *FacultyHandler
	studentHandler *StudentHandler
	authenticator  auth.Authenticator
	limiter        *utils.RateLimiter
	metrics        *metrics.Metrics
	logger         utils.Logger
}

// RouterOptions carries the cross cutting middleware; Limiter and Metrics may be nil
type RouterOptions struct {
	Authenticator auth.Authenticator
	Limiter       *utils.RateLimiter
	Metrics       *metrics.Metrics
	// MaxImageBytes caps answer image uploads, DefaultMaxImageBytes when zero
	MaxImageBytes int64
}

func NewHandlerManager(serviceManager services.ServiceManager, opts RouterOptions, logger utils.Logger) *HandlerManager {
	return &HandlerManager{
		facultyHandler: NewFacultyHandler(
			serviceManager.Exam(),
			serviceManager.Grading(),
			serviceManager.Performance(),
			serviceManager.Export(),
			logger,
		),
		studentHandler: NewStudentHandler(
			serviceManager.Attempt(),
			serviceManager.Answer(),
			serviceManager.Performance(),
			opts.MaxImageBytes,
			logger,
		),
		authenticator: opts.Authenticator,
		limiter:       opts.Limiter,
		metrics:       opts.Metrics,
		logger:        logger,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.Use(tracing.GinMiddleware())
	if hm.metrics != nil {
		router.Use(hm.metrics.Middleware())
		router.GET("/metrics", hm.metrics.Handler())
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
		})
	})

	v1 := router.Group("/api/v1", auth.Middleware(hm.authenticator, hm.logger))

	faculty := v1.Group("/faculty", auth.RequireRole(models.RoleTeacher, models.RoleAdmin))
	{
		fh := hm.facultyHandler

		faculty.GET("/batches", fh.ListBatches)

		exams := faculty.Group("/exams")
		{
			exams.POST("", fh.CreateExam)
			exams.GET("", fh.ListExams)
			exams.GET("/:id", fh.GetExam)
			exams.PUT("/:id", fh.UpdateExam)
			exams.POST("/:id/publish", fh.PublishExam)
			exams.POST("/:id/close", fh.CloseExam)
			exams.POST("/:id/questions", fh.AddQuestion)
			exams.GET("/:id/leaderboard", fh.Leaderboard)
			exams.GET("/:id/results/export", fh.ExportResults)
		}

		faculty.DELETE("/questions/:id", fh.DeleteQuestion)

		faculty.GET("/evaluation-queue", fh.EvaluationQueue)
		faculty.GET("/answer-sheets/:id", fh.GetAnswerSheet)
		faculty.PUT("/answer-sheets/:id/feedback", fh.SetFeedback)
		faculty.POST("/answer-sheets/:id/auto-grade", fh.AutoGrade)
		faculty.POST("/answer-sheets/:id/submit-grading", fh.SubmitGrading)
		faculty.PUT("/answers/:id/grade", fh.GradeAnswer)

		faculty.GET("/students/:student_id/performance", fh.StudentPerformance)
	}

	student := v1.Group("/student", auth.RequireRole(models.RoleStudent))
	{
		sh := hm.studentHandler

		student.GET("/exams", sh.ListExams)
		student.GET("/exams/active", sh.GetActiveAttempt)
		student.GET("/exams/:id", sh.GetExam)
		student.POST("/exams/:id/start", sh.StartExam)

		student.GET("/answer-sheets/:id", sh.GetAnswerSheet)
		student.POST("/answer-sheets/:id/submit", sh.SubmitAnswerSheet)

		// answer writes are rate limited per student
		answers := student.Group("/answers")
		if hm.limiter != nil {
			answers.Use(hm.limiter.Middleware())
		}
		{
			answers.PUT("/:id", sh.SaveAnswer)
			answers.POST("/:id/images", sh.AttachImage)
			answers.DELETE("/:id/images", sh.RemoveImage)
		}

		student.GET("/performance", sh.GetPerformance)
		student.GET("/performance/comparison", sh.GetComparison)
	}
}
