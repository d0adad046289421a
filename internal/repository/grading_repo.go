package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/autograder-io/examflow-api/internal/models"
)

// PairCounts aggregates per-submission answer and result counts.
type PairCounts struct {
	SubmissionID uint
	Answers      int64
	Results      int64
}

// GradingRepository persists grading output. ReplacePair enforces the
// one-pair-per-(submission, question) invariant: re-grading updates the
// existing rows in place instead of inserting new ones.
type GradingRepository interface {
	ReplacePair(ctx context.Context, answer *models.StudentAnswer, result *models.GradingResult) error
	CountsBySubmission(ctx context.Context, submissionIDs []uint) (map[uint]PairCounts, error)
	CountResultsByStudent(ctx context.Context, examID uint) (map[uint]int64, error)
	DeleteBySubmission(ctx context.Context, submissionID uint) error
}

type gradingRepository struct {
	db *gorm.DB
}

// NewGradingRepository constructs a grading repository.
func NewGradingRepository(db *gorm.DB) GradingRepository {
	return &gradingRepository{db: db}
}

func (r *gradingRepository) ReplacePair(ctx context.Context, answer *models.StudentAnswer, result *models.GradingResult) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existingAnswer models.StudentAnswer
		err := tx.Where("submission_id = ? AND question_id = ?", answer.SubmissionID, answer.QuestionID).
			First(&existingAnswer).Error
		switch {
		case err == nil:
			answer.ID = existingAnswer.ID
			answer.CreatedAt = existingAnswer.CreatedAt
			if err := tx.Save(answer).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(answer).Error; err != nil {
				return err
			}
		default:
			return err
		}

		result.StudentAnswerID = answer.ID

		var existingResult models.GradingResult
		err = tx.Where("student_answer_id = ?", answer.ID).First(&existingResult).Error
		switch {
		case err == nil:
			result.ID = existingResult.ID
			result.CreatedAt = existingResult.CreatedAt
			return tx.Save(result).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(result).Error
		default:
			return err
		}
	})
}

// CountsBySubmission resolves answer and result counts for a set of
// submissions in one query, avoiding a round trip per submission per metric.
func (r *gradingRepository) CountsBySubmission(ctx context.Context, submissionIDs []uint) (map[uint]PairCounts, error) {
	counts := make(map[uint]PairCounts, len(submissionIDs))
	if len(submissionIDs) == 0 {
		return counts, nil
	}

	var rows []PairCounts
	err := r.db.WithContext(ctx).
		Model(&models.StudentAnswer{}).
		Select("student_answers.submission_id AS submission_id, COUNT(DISTINCT student_answers.id) AS answers, COUNT(grading_results.id) AS results").
		Joins("LEFT JOIN grading_results ON grading_results.student_answer_id = student_answers.id").
		Where("student_answers.submission_id IN ?", submissionIDs).
		Group("student_answers.submission_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.SubmissionID] = row
	}

	return counts, nil
}

// CountResultsByStudent returns per-student grading result counts for one
// exam in a single grouped query.
func (r *gradingRepository) CountResultsByStudent(ctx context.Context, examID uint) (map[uint]int64, error) {
	type studentCount struct {
		StudentID uint
		Total     int64
	}

	var rows []studentCount
	err := r.db.WithContext(ctx).
		Model(&models.GradingResult{}).
		Select("student_id, COUNT(*) AS total").
		Where("exam_id = ?", examID).
		Group("student_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.StudentID] = row.Total
	}

	return counts, nil
}

// DeleteBySubmission removes all grading rows for a submission. Called when
// a submission is deleted so orphaned answers never linger.
func (r *gradingRepository) DeleteBySubmission(ctx context.Context, submissionID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("student_answer_id IN (?)", tx.Model(&models.StudentAnswer{}).Select("id").Where("submission_id = ?", submissionID)).
			Delete(&models.GradingResult{}).Error; err != nil {
			return err
		}
		return tx.Where("submission_id = ?", submissionID).Delete(&models.StudentAnswer{}).Error
	})
}
