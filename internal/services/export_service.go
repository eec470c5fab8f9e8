package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/scoring"
	"github.com/xuri/excelize/v2"
)

const resultsSheetName = "Results"

type exportService struct {
	deps Dependencies
	repo repositories.Repository
	log  *ServiceLogger
}

func NewExportService(deps Dependencies) ExportService {
	deps = deps.withDefaults()
	return &exportService{
		deps: deps,
		repo: deps.Repo,
		log:  NewServiceLogger(deps.Logger, "export"),
	}
}

func (s *exportService) ExportExamResults(ctx context.Context, examID uint, format ExportFormat, actor models.Actor) (*ExportFile, error) {
	op := s.log.WithOperation(ctx, "export_results", actor.UserID)

	file, err := s.export(ctx, examID, format, actor)
	op.LogResult(examID, "exam", err)
	return file, err
}

func (s *exportService) export(ctx context.Context, examID uint, format ExportFormat, actor models.Actor) (*ExportFile, error) {
	format = ExportFormat(strings.ToLower(string(format)))
	if format == "" {
		format = ExportXLSX
	}
	if format != ExportXLSX && format != ExportCSV {
		return nil, ValidationErrors{*NewValidationError("format", "must be xlsx or csv", string(format))}
	}

	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, nil, examID)
	if err != nil {
		return nil, notFoundOr(err, ErrExamNotFound, "get exam")
	}
	if err := checkExamOwner(exam, actor, "export_results"); err != nil {
		return nil, err
	}

	rows, err := s.buildRows(ctx, exam)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("exam_%d_results_%s", exam.ID, s.deps.Now().UTC().Format("20060102"))
	switch format {
	case ExportCSV:
		data, err := writeResultsCSV(rows)
		if err != nil {
			return nil, err
		}
		return &ExportFile{Filename: name + ".csv", ContentType: "text/csv", Data: data}, nil
	default:
		data, err := writeResultsExcel(rows)
		if err != nil {
			return nil, err
		}
		return &ExportFile{
			Filename:    name + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}, nil
	}
}

// buildRows returns the header followed by one row per answer sheet
func (s *exportService) buildRows(ctx context.Context, exam *models.Exam) ([][]string, error) {
	sheets, err := s.repo.AnswerSheet().ListByExam(ctx, nil, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answer sheets: %w", err)
	}
	metrics, err := s.repo.Performance().ListByExam(ctx, nil, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exam metrics: %w", err)
	}
	ranks := make(map[string]int, len(metrics))
	for _, m := range metrics {
		ranks[m.StudentID] = m.BatchRank
	}

	ids := make([]string, 0, len(sheets))
	for _, sheet := range sheets {
		ids = append(ids, sheet.StudentID)
	}
	users, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get students: %w", err)
	}

	header := []string{"Student ID", "Student Name", "Status", "Submitted At", "Obtained", "Total", "Percentage", "Rank"}
	for i, q := range exam.Questions {
		header = append(header, fmt.Sprintf("Q%d (%d)", i+1, q.Points))
	}

	rows := [][]string{header}
	for _, sheet := range sheets {
		row := []string{sheet.StudentID, "", string(sheet.Status), "", "", strconv.Itoa(sheet.TotalPoints), "", ""}
		if u, ok := users[sheet.StudentID]; ok {
			row[1] = u.FullName
		}
		if sheet.SubmittedAt != nil {
			row[3] = sheet.SubmittedAt.UTC().Format(time.RFC3339)
		}
		if sheet.ObtainedPoints != nil {
			row[4] = strconv.Itoa(*sheet.ObtainedPoints)
		}
		if rank, ok := ranks[sheet.StudentID]; ok && sheet.Status == models.SheetGraded {
			row[6] = strconv.FormatFloat(scoring.Percentage(derefInt(sheet.ObtainedPoints), sheet.TotalPoints), 'f', 2, 64)
			row[7] = strconv.Itoa(rank)
		}

		awarded := make(map[uint]*int, len(sheet.Answers))
		for _, a := range sheet.Answers {
			awarded[a.QuestionID] = a.PointsAwarded
		}
		for _, q := range exam.Questions {
			cell := ""
			if p := awarded[q.ID]; p != nil {
				cell = strconv.Itoa(*p)
			}
			row = append(row, cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func writeResultsCSV(rows [][]string) ([]byte, error) {
	var buf strings.Builder
	writer := csv.NewWriter(&buf)

	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return []byte(buf.String()), nil
}

func writeResultsExcel(rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// the default sheet becomes the results sheet
	if err := f.SetSheetName(f.GetSheetName(0), resultsSheetName); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, fmt.Errorf("failed to address cell: %w", err)
			}
			if err := f.SetCellValue(resultsSheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}
