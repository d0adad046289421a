package models

import "time"

// StudentAnswer is one segmented answer span extracted from a submission.
// The (submission_id, question_id) pair is unique: regrading replaces the
// row in place rather than accumulating duplicates.
type StudentAnswer struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	SubmissionID    uint      `gorm:"not null;uniqueIndex:idx_submission_question" json:"submission_id"`
	QuestionID      uint      `gorm:"not null;uniqueIndex:idx_submission_question" json:"question_id"`
	StudentID       uint      `gorm:"not null;index" json:"student_id"`
	ExtractedAnswer string    `gorm:"type:text;not null" json:"extracted_answer"`
	ConfidenceScore float64   `json:"confidence_score"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
