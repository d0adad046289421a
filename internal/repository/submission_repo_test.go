package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/autograder-io/examflow-api/internal/models"
)

func TestSubmissionRepositoryListByExamNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	student := models.Student{Code: "STU001", FullName: "Alice Johnson"}
	require.NoError(t, db.Create(&student).Error)

	older := models.Submission{ExamID: 1, StudentID: student.ID, UploadedBy: 9, FileName: "a.txt", StorageKey: "k1", FileType: "txt", ProcessingStatus: models.SubmissionStatusProcessed, CreatedAt: time.Now().Add(-2 * time.Hour)}
	newer := models.Submission{ExamID: 1, StudentID: student.ID, UploadedBy: 9, FileName: "b.txt", StorageKey: "k2", FileType: "txt", ProcessingStatus: models.SubmissionStatusUploaded, CreatedAt: time.Now().Add(-1 * time.Hour)}
	other := models.Submission{ExamID: 2, StudentID: student.ID, UploadedBy: 9, FileName: "c.txt", StorageKey: "k3", FileType: "txt", ProcessingStatus: models.SubmissionStatusUploaded}
	require.NoError(t, repo.Create(ctx, &older))
	require.NoError(t, repo.Create(ctx, &newer))
	require.NoError(t, repo.Create(ctx, &other))

	submissions, err := repo.ListByExam(ctx, 1)
	require.NoError(t, err)
	require.Len(t, submissions, 2)
	require.Equal(t, "b.txt", submissions[0].FileName, "expected newest record first")
	require.Equal(t, "Alice Johnson", submissions[0].Student.FullName)

	processed, err := repo.ListByExamAndStatus(ctx, 1, models.SubmissionStatusProcessed)
	require.NoError(t, err)
	require.Len(t, processed, 1)
	require.Equal(t, "a.txt", processed[0].FileName)
}

func TestSubmissionRepositoryUpdateFields(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	submission := models.Submission{ExamID: 1, StudentID: 1, UploadedBy: 2, FileName: "a.txt", StorageKey: "k", FileType: "txt", ProcessingStatus: models.SubmissionStatusUploaded}
	require.NoError(t, repo.Create(ctx, &submission))

	require.NoError(t, repo.UpdateFields(ctx, submission.ID, map[string]interface{}{
		"processing_status": models.SubmissionStatusFailed,
		"error_message":     "no text extracted",
	}))

	stored, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusFailed, stored.ProcessingStatus)
	require.Equal(t, "no text extracted", stored.ErrorMessage)
	require.Equal(t, "a.txt", stored.FileName, "untouched columns survive the partial update")
}
