package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/autograder-io/examflow-api/internal/models"
)

// ExamRepository provides read access to exam definitions.
type ExamRepository interface {
	GetByID(ctx context.Context, id uint) (models.Exam, error)
}

type examRepository struct {
	db *gorm.DB
}

// NewExamRepository constructs an exam repository.
func NewExamRepository(db *gorm.DB) ExamRepository {
	return &examRepository{db: db}
}

func (r *examRepository) GetByID(ctx context.Context, id uint) (models.Exam, error) {
	var exam models.Exam
	if err := r.db.WithContext(ctx).First(&exam, id).Error; err != nil {
		return models.Exam{}, err
	}

	return exam, nil
}
