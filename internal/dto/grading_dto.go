package dto

// GradeReport summarizes one grading pass over a submission.
type GradeReport struct {
	QuestionsConsidered int `json:"questions_considered"`
	GradedCount         int `json:"graded_count"`
}

// RegradeEntry is the outcome of regrading one submission.
type RegradeEntry struct {
	SubmissionID uint   `json:"submission_id"`
	Status       string `json:"status"`
	GradedCount  int    `json:"graded_count"`
	Error        string `json:"error,omitempty"`
}

// RegradeReport summarizes a regrade pass over every processed submission
// of an exam.
type RegradeReport struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Results   []RegradeEntry `json:"results"`
}

const (
	// RegradeStatusSuccess marks a submission regraded without error.
	RegradeStatusSuccess = "success"
	// RegradeStatusFailed marks a submission whose regrade raised an error.
	RegradeStatusFailed = "failed"
)
