package models

import "time"

// GradingResult captures the grading adapter's verdict for one answer.
// FinalMarks starts equal to AIMarks; teacher overrides happen outside this
// service and flip IsReviewedByTeacher.
type GradingResult struct {
	ID                  uint          `gorm:"primaryKey" json:"id"`
	StudentAnswerID     uint          `gorm:"not null;uniqueIndex" json:"student_answer_id"`
	ExamID              uint          `gorm:"not null;index" json:"exam_id"`
	StudentID           uint          `gorm:"not null;index" json:"student_id"`
	QuestionID          uint          `gorm:"not null" json:"question_id"`
	AIMarks             float64       `gorm:"not null" json:"ai_marks"`
	FinalMarks          float64       `gorm:"not null" json:"final_marks"`
	Feedback            string        `gorm:"type:text" json:"feedback"`
	AIConfidence        float64       `json:"ai_confidence"`
	SimilarityScore     float64       `json:"similarity_score"`
	IsReviewedByTeacher bool          `gorm:"not null;default:false" json:"is_reviewed_by_teacher"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
	StudentAnswer       StudentAnswer `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student_answer"`
}
