package dto

// BatchFile is one file in a batch submission, paired with the roster
// identifier of the student whose paper it is.
type BatchFile struct {
	FileName          string
	StudentIdentifier string
	Data              []byte
}

// BatchItemSuccess records one submission accepted into the pipeline.
type BatchItemSuccess struct {
	SubmissionID      uint   `json:"submission_id"`
	StudentIdentifier string `json:"student_identifier"`
	FileName          string `json:"file_name"`
}

// BatchItemFailure records one rejected item and why. StudentIdentifier is
// empty when the failure happened before the identifier could be derived.
type BatchItemFailure struct {
	FileName          string `json:"file_name"`
	StudentIdentifier string `json:"student_identifier,omitempty"`
	Reason            string `json:"reason"`
}

// BatchReport summarizes a batch or archive submission. One item's failure
// never removes the others: len(Succeeded) + len(Failed) == Total.
type BatchReport struct {
	Total     int                `json:"total"`
	Succeeded []BatchItemSuccess `json:"succeeded"`
	Failed    []BatchItemFailure `json:"failed"`
}
