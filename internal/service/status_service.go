package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/autograder-io/examflow-api/internal/dto"
	"github.com/autograder-io/examflow-api/internal/repository"
)

// StatusService answers read-side questions about submissions and exam
// progress. Aggregates are computed with batched queries regardless of
// submission count.
type StatusService interface {
	SubmissionStatus(ctx context.Context, submissionID uint) (dto.SubmissionResponse, error)
	ExamUploadStatus(ctx context.Context, examID uint) ([]dto.SubmissionResponse, error)
	ExamGradingStatus(ctx context.Context, examID uint) (dto.ExamGradingStatus, error)

	// InvalidateExamStatus drops the cached grading aggregation after a
	// grading write. Best effort: a stale entry ages out via TTL anyway.
	InvalidateExamStatus(ctx context.Context, examID uint)
}

type statusService struct {
	submissions repository.SubmissionRepository
	exams       repository.ExamRepository
	grading     repository.GradingRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

func NewStatusService(
	submissions repository.SubmissionRepository,
	exams repository.ExamRepository,
	grading repository.GradingRepository,
	cache *redis.Client,
	cacheTTL time.Duration,
	logger zerolog.Logger,
) StatusService {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &statusService{
		submissions: submissions,
		exams:       exams,
		grading:     grading,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger.With().Str("component", "status_service").Logger(),
	}
}

func (s *statusService) SubmissionStatus(ctx context.Context, submissionID uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("%w: id %d", ErrSubmissionNotFound, submissionID)
	}
	return dto.NewSubmissionResponse(submission), nil
}

func (s *statusService) ExamUploadStatus(ctx context.Context, examID uint) ([]dto.SubmissionResponse, error) {
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		return nil, fmt.Errorf("%w: id %d", ErrExamNotFound, examID)
	}

	submissions, err := s.submissions.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	responses := make([]dto.SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, dto.NewSubmissionResponse(submission))
	}
	return responses, nil
}

func (s *statusService) ExamGradingStatus(ctx context.Context, examID uint) (dto.ExamGradingStatus, error) {
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		return dto.ExamGradingStatus{}, fmt.Errorf("%w: id %d", ErrExamNotFound, examID)
	}

	cacheKey := gradingStatusCacheKey(examID)
	if cached, ok := s.fromCache(ctx, cacheKey); ok {
		return cached, nil
	}

	submissions, err := s.submissions.ListByExam(ctx, examID)
	if err != nil {
		return dto.ExamGradingStatus{}, fmt.Errorf("failed to list submissions: %w", err)
	}

	submissionIDs := make([]uint, 0, len(submissions))
	for _, submission := range submissions {
		submissionIDs = append(submissionIDs, submission.ID)
	}

	counts, err := s.grading.CountsBySubmission(ctx, submissionIDs)
	if err != nil {
		return dto.ExamGradingStatus{}, fmt.Errorf("failed to count grading pairs: %w", err)
	}
	resultsByStudent, err := s.grading.CountResultsByStudent(ctx, examID)
	if err != nil {
		return dto.ExamGradingStatus{}, fmt.Errorf("failed to count student results: %w", err)
	}

	status := dto.ExamGradingStatus{
		ExamID:      examID,
		Total:       len(submissions),
		Submissions: make([]dto.GradingStatusEntry, 0, len(submissions)),
	}
	for _, submission := range submissions {
		pair := counts[submission.ID]

		var studentName *string
		if submission.Student.ID != 0 && submission.Student.FullName != "" {
			name := submission.Student.FullName
			studentName = &name
		}

		status.Submissions = append(status.Submissions, dto.GradingStatusEntry{
			SubmissionID:        submission.ID,
			StudentID:           submission.StudentID,
			StudentName:         studentName,
			ProcessingStatus:    submission.ProcessingStatus,
			HasText:             submission.HasText(),
			StudentAnswersCount: pair.Answers,
			GradingResultsCount: pair.Results,
			IsGraded:            resultsByStudent[submission.StudentID] > 0,
		})
	}

	s.toCache(ctx, cacheKey, status)
	return status, nil
}

func (s *statusService) InvalidateExamStatus(ctx context.Context, examID uint) {
	if s.cache == nil {
		return
	}

	key := gradingStatusCacheKey(examID)
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("grading status cache invalidation failed")
	}
}

func gradingStatusCacheKey(examID uint) string {
	return fmt.Sprintf("grading_status:exam:%d", examID)
}

func (s *statusService) fromCache(ctx context.Context, key string) (dto.ExamGradingStatus, bool) {
	if s.cache == nil {
		return dto.ExamGradingStatus{}, false
	}

	payload, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("key", key).Msg("grading status cache read failed")
		}
		return dto.ExamGradingStatus{}, false
	}

	var status dto.ExamGradingStatus
	if err := json.Unmarshal([]byte(payload), &status); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("discarding corrupt grading status cache entry")
		return dto.ExamGradingStatus{}, false
	}
	return status, true
}

func (s *statusService) toCache(ctx context.Context, key string, status dto.ExamGradingStatus) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(status)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("grading status cache write failed")
	}
}
