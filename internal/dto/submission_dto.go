package dto

import (
	"time"

	"github.com/autograder-io/examflow-api/internal/models"
)

// SubmissionResponse is the API representation of a submission row.
type SubmissionResponse struct {
	ID               uint       `json:"id"`
	ExamID           uint       `json:"exam_id"`
	StudentID        uint       `json:"student_id"`
	StudentCode      string     `json:"student_code,omitempty"`
	StudentName      string     `json:"student_name,omitempty"`
	UploadedBy       uint       `json:"uploaded_by"`
	FileName         string     `json:"file_name"`
	FileSize         int64      `json:"file_size"`
	FileType         string     `json:"file_type"`
	ProcessingStatus string     `json:"processing_status"`
	HasText          bool       `json:"has_text"`
	ConfidenceScore  float64    `json:"confidence_score"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
}

// NewSubmissionResponse maps a model row onto the API shape.
func NewSubmissionResponse(submission models.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:               submission.ID,
		ExamID:           submission.ExamID,
		StudentID:        submission.StudentID,
		StudentCode:      submission.Student.Code,
		StudentName:      submission.Student.FullName,
		UploadedBy:       submission.UploadedBy,
		FileName:         submission.FileName,
		FileSize:         submission.FileSize,
		FileType:         submission.FileType,
		ProcessingStatus: submission.ProcessingStatus,
		HasText:          submission.HasText(),
		ConfidenceScore:  submission.ConfidenceScore,
		ErrorMessage:     submission.ErrorMessage,
		CreatedAt:        submission.CreatedAt,
		ProcessedAt:      submission.ProcessedAt,
	}
}

// GradingStatusEntry is the per-submission grading progress row.
// StudentName is nil when the roster lookup found no student; the
// aggregation never fails on a missing student.
type GradingStatusEntry struct {
	SubmissionID        uint    `json:"submission_id"`
	StudentID           uint    `json:"student_id"`
	StudentName         *string `json:"student_name"`
	ProcessingStatus    string  `json:"processing_status"`
	HasText             bool    `json:"has_text"`
	StudentAnswersCount int64   `json:"student_answers_count"`
	GradingResultsCount int64   `json:"grading_results_count"`
	IsGraded            bool    `json:"is_graded"`
}

// ExamGradingStatus aggregates grading progress across an exam.
type ExamGradingStatus struct {
	ExamID      uint                 `json:"exam_id"`
	Total       int                  `json:"total"`
	Submissions []GradingStatusEntry `json:"submissions"`
}
