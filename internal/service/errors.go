package service

import "errors"

var (
	ErrExamNotFound       = errors.New("exam not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrBatchSizeMismatch  = errors.New("file count does not match student identifier count")
	ErrInvalidArchive     = errors.New("archive is not a readable zip file")
	ErrNotSubmissionOwner = errors.New("submission can only be deleted by its uploader")
)
