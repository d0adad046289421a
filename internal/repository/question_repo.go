package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/autograder-io/examflow-api/internal/models"
)

// QuestionRepository provides read access to exam questions.
type QuestionRepository interface {
	ListByExam(ctx context.Context, examID uint) ([]models.Question, error)
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository constructs a question repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) ListByExam(ctx context.Context, examID uint) ([]models.Question, error) {
	var questions []models.Question
	if err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("question_number ASC").
		Find(&questions).Error; err != nil {
		return nil, err
	}

	return questions, nil
}
