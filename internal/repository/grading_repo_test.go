package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/autograder-io/examflow-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Exam{},
		&models.Question{},
		&models.Student{},
		&models.Submission{},
		&models.StudentAnswer{},
		&models.GradingResult{},
	))
	return db
}

func TestGradingRepositoryReplacePairIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGradingRepository(db)
	ctx := context.Background()

	answer := &models.StudentAnswer{SubmissionID: 1, QuestionID: 7, StudentID: 3, ExtractedAnswer: "first pass", ConfidenceScore: 0.8}
	result := &models.GradingResult{ExamID: 2, StudentID: 3, QuestionID: 7, AIMarks: 4, FinalMarks: 4, Feedback: "good"}
	require.NoError(t, repo.ReplacePair(ctx, answer, result))
	require.NotZero(t, answer.ID)
	require.Equal(t, answer.ID, result.StudentAnswerID)

	replacement := &models.StudentAnswer{SubmissionID: 1, QuestionID: 7, StudentID: 3, ExtractedAnswer: "second pass", ConfidenceScore: 0.9}
	replacedResult := &models.GradingResult{ExamID: 2, StudentID: 3, QuestionID: 7, AIMarks: 5, FinalMarks: 5, Feedback: "better"}
	require.NoError(t, repo.ReplacePair(ctx, replacement, replacedResult))

	var answerCount, resultCount int64
	require.NoError(t, db.Model(&models.StudentAnswer{}).Count(&answerCount).Error)
	require.NoError(t, db.Model(&models.GradingResult{}).Count(&resultCount).Error)
	require.Equal(t, int64(1), answerCount)
	require.Equal(t, int64(1), resultCount)

	var stored models.StudentAnswer
	require.NoError(t, db.First(&stored).Error)
	require.Equal(t, "second pass", stored.ExtractedAnswer)
	require.Equal(t, answer.ID, stored.ID, "replacement keeps the same primary identity")

	var storedResult models.GradingResult
	require.NoError(t, db.First(&storedResult).Error)
	require.Equal(t, 5.0, storedResult.AIMarks)
}

func TestGradingRepositoryCountsBySubmission(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGradingRepository(db)
	ctx := context.Background()

	for question := uint(1); question <= 3; question++ {
		answer := &models.StudentAnswer{SubmissionID: 10, QuestionID: question, StudentID: 5, ExtractedAnswer: "a"}
		result := &models.GradingResult{ExamID: 1, StudentID: 5, QuestionID: question, AIMarks: 1, FinalMarks: 1}
		require.NoError(t, repo.ReplacePair(ctx, answer, result))
	}
	// A second submission with an answer but no grading result yet.
	require.NoError(t, db.Create(&models.StudentAnswer{SubmissionID: 11, QuestionID: 1, StudentID: 6, ExtractedAnswer: "b"}).Error)

	counts, err := repo.CountsBySubmission(ctx, []uint{10, 11, 12})
	require.NoError(t, err)
	require.Equal(t, int64(3), counts[10].Answers)
	require.Equal(t, int64(3), counts[10].Results)
	require.Equal(t, int64(1), counts[11].Answers)
	require.Equal(t, int64(0), counts[11].Results)
	_, ok := counts[12]
	require.False(t, ok, "submissions without answers are absent")
}

func TestGradingRepositoryCountResultsByStudent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGradingRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.StudentAnswer{SubmissionID: 1, QuestionID: 1, StudentID: 5, ExtractedAnswer: "a"}).Error)
	require.NoError(t, db.Create(&models.GradingResult{StudentAnswerID: 1, ExamID: 9, StudentID: 5, QuestionID: 1, AIMarks: 2, FinalMarks: 2}).Error)

	counts, err := repo.CountResultsByStudent(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[5])
	require.Zero(t, counts[6])
}

func TestGradingRepositoryDeleteBySubmission(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGradingRepository(db)
	ctx := context.Background()

	answer := &models.StudentAnswer{SubmissionID: 4, QuestionID: 1, StudentID: 2, ExtractedAnswer: "a"}
	result := &models.GradingResult{ExamID: 1, StudentID: 2, QuestionID: 1, AIMarks: 1, FinalMarks: 1}
	require.NoError(t, repo.ReplacePair(ctx, answer, result))

	require.NoError(t, repo.DeleteBySubmission(ctx, 4))

	var answerCount, resultCount int64
	require.NoError(t, db.Model(&models.StudentAnswer{}).Count(&answerCount).Error)
	require.NoError(t, db.Model(&models.GradingResult{}).Count(&resultCount).Error)
	require.Zero(t, answerCount)
	require.Zero(t, resultCount)
}
