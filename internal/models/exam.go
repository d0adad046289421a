package models

import "time"

// Exam represents a graded exam definition. Exams and their questions are
// created by an external administration surface and are read-only here.
type Exam struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Name       string     `gorm:"size:255;not null" json:"name"`
	TotalMarks float64    `gorm:"not null" json:"total_marks"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Questions  []Question `json:"questions,omitempty"`
}
