package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Question is a single numbered question on an exam paper. QuestionNumber is
// unique within an exam and drives the ordering of grading passes.
type Question struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ExamID         uint           `gorm:"not null;uniqueIndex:idx_exam_question_number" json:"exam_id"`
	QuestionNumber int            `gorm:"not null;uniqueIndex:idx_exam_question_number" json:"question_number"`
	Text           string         `gorm:"type:text;not null" json:"text"`
	MaxMarks       float64        `gorm:"not null" json:"max_marks"`
	MarkingScheme  string         `gorm:"type:text" json:"marking_scheme"`
	SampleAnswer   string         `gorm:"type:text" json:"sample_answer"`
	Keywords       datatypes.JSON `json:"keywords"`
}

// KeywordList decodes the stored keyword set. Malformed or empty payloads
// yield an empty list rather than an error; keywords are advisory inputs to
// the grading adapter, never load-bearing.
func (q Question) KeywordList() []string {
	if len(q.Keywords) == 0 {
		return nil
	}
	var keywords []string
	if err := json.Unmarshal(q.Keywords, &keywords); err != nil {
		return nil
	}
	return keywords
}
