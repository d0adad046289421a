package ai

import "context"

// GradingInput contains the artefacts needed to grade one question's answer.
type GradingInput struct {
	QuestionNumber int
	QuestionText   string
	ModelAnswer    string
	MarkingScheme  string
	MaxMarks       float64
	Keywords       []string
	StudentAnswer  string
}

// GradingOutcome is the structured verdict returned by the grading model.
// Marks is an absolute value in [0, MaxMarks]; Confidence is in [0, 1].
type GradingOutcome struct {
	Marks      float64 `json:"marks"`
	Confidence float64 `json:"confidence"`
	Feedback   string  `json:"feedback"`
}

// Grader describes an AI model capable of marking a student answer against
// a question's model answer and marking scheme.
type Grader interface {
	Grade(ctx context.Context, input GradingInput) (GradingOutcome, error)
}
