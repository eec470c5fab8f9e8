package services

import (
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

type serviceManager struct {
	repo        repositories.Repository
	exam        ExamService
	attempt     AttemptService
	answer      AnswerService
	grading     GradingService
	performance PerformanceService
	export      ExportService
	sweeper     *ExpirySweeper
}

func NewServiceManager(deps Dependencies, sweep SweeperConfig) ServiceManager {
	deps = deps.withDefaults()

	performance := NewPerformanceService(deps)
	attempt := NewAttemptService(deps)

	return &serviceManager{
		repo:        deps.Repo,
		exam:        NewExamService(deps),
		attempt:     attempt,
		answer:      NewAnswerService(deps),
		grading:     NewGradingService(deps, performance),
		performance: performance,
		export:      NewExportService(deps),
		sweeper:     NewExpirySweeper(deps, attempt, sweep),
	}
}

func (m *serviceManager) Exam() ExamService                   { return m.exam }
func (m *serviceManager) Attempt() AttemptService             { return m.attempt }
func (m *serviceManager) Answer() AnswerService               { return m.answer }
func (m *serviceManager) Grading() GradingService             { return m.grading }
func (m *serviceManager) Performance() PerformanceService     { return m.performance }
func (m *serviceManager) Export() ExportService               { return m.export }
func (m *serviceManager) Sweeper() *ExpirySweeper             { return m.sweeper }
func (m *serviceManager) Repository() repositories.Repository { return m.repo }
