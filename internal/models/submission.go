package models

import "time"

// Submission is one uploaded exam answer file tied to one exam and one
// student. The row is owned by the processing pipeline until it reaches a
// terminal status; only reprocess and delete touch it afterwards.
type Submission struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	ExamID           uint       `gorm:"not null;index" json:"exam_id"`
	StudentID        uint       `gorm:"not null;index" json:"student_id"`
	UploadedBy       uint       `gorm:"not null" json:"uploaded_by"`
	FileName         string     `gorm:"size:255;not null" json:"file_name"`
	StorageKey       string     `gorm:"size:512;not null" json:"storage_key"`
	FileSize         int64      `gorm:"not null" json:"file_size"`
	FileType         string     `gorm:"size:16;not null" json:"file_type"`
	ProcessingStatus string     `gorm:"size:32;not null;index" json:"processing_status"`
	ExtractedText    string     `gorm:"type:text" json:"extracted_text"`
	ConfidenceScore  float64    `json:"confidence_score"`
	ErrorMessage     string     `gorm:"type:text" json:"error_message"`
	CreatedAt        time.Time  `json:"created_at"`
	ProcessedAt      *time.Time `json:"processed_at"`
	Student          Student    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

const (
	// SubmissionStatusUploaded indicates bytes are stored and the row is queued.
	SubmissionStatusUploaded = "uploaded"
	// SubmissionStatusProcessing indicates a pipeline worker owns the row.
	SubmissionStatusProcessing = "processing"
	// SubmissionStatusProcessed indicates extraction succeeded; terminal absent reprocess.
	SubmissionStatusProcessed = "processed"
	// SubmissionStatusFailed indicates extraction failed; terminal absent reprocess.
	SubmissionStatusFailed = "failed"
)

// HasText reports whether extraction produced usable text.
func (s Submission) HasText() bool {
	return len(s.ExtractedText) > 0
}

// IsTerminal reports whether the submission has left the pipeline.
func (s Submission) IsTerminal() bool {
	return s.ProcessingStatus == SubmissionStatusProcessed || s.ProcessingStatus == SubmissionStatusFailed
}
