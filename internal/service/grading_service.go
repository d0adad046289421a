package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/autograder-io/examflow-api/internal/dto"
	"github.com/autograder-io/examflow-api/internal/models"
	"github.com/autograder-io/examflow-api/internal/repository"
	"github.com/autograder-io/examflow-api/internal/segment"
	"github.com/autograder-io/examflow-api/pkg/ai"
)

// GradingService scores processed submissions question by question. Grading
// is idempotent: re-running a submission replaces its existing answers and
// results instead of duplicating them.
type GradingService interface {
	GradeSubmission(ctx context.Context, submissionID uint) (dto.GradeReport, error)
	RegradeAll(ctx context.Context, examID uint) (dto.RegradeReport, error)
}

// StatusInvalidator drops cached exam aggregations after grading writes.
// StatusService satisfies it; a nil invalidator disables invalidation.
type StatusInvalidator interface {
	InvalidateExamStatus(ctx context.Context, examID uint)
}

type gradingService struct {
	submissions repository.SubmissionRepository
	exams       repository.ExamRepository
	questions   repository.QuestionRepository
	grading     repository.GradingRepository
	grader      ai.Grader
	events      *PipelineEvents
	invalidator StatusInvalidator
	sanitizer   *bluemonday.Policy
	timeout     time.Duration
	logger      zerolog.Logger
	tracer      trace.Tracer
}

func NewGradingService(
	submissions repository.SubmissionRepository,
	exams repository.ExamRepository,
	questions repository.QuestionRepository,
	grading repository.GradingRepository,
	grader ai.Grader,
	events *PipelineEvents,
	invalidator StatusInvalidator,
	adapterTimeout time.Duration,
	logger zerolog.Logger,
) GradingService {
	if adapterTimeout <= 0 {
		adapterTimeout = time.Minute
	}
	return &gradingService{
		submissions: submissions,
		exams:       exams,
		questions:   questions,
		grading:     grading,
		grader:      grader,
		events:      events,
		invalidator: invalidator,
		sanitizer:   bluemonday.StrictPolicy(),
		timeout:     adapterTimeout,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/autograder-io/examflow-api/internal/service/grading"),
	}
}

func (s *gradingService) GradeSubmission(ctx context.Context, submissionID uint) (dto.GradeReport, error) {
	ctx, span := s.tracer.Start(ctx, "grading.submission", trace.WithAttributes(
		attribute.Int("submission.id", int(submissionID)),
	))
	defer span.End()

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return dto.GradeReport{}, fmt.Errorf("%w: id %d", ErrSubmissionNotFound, submissionID)
	}

	logger := s.logger.With().Uint("submission_id", submission.ID).Uint("exam_id", submission.ExamID).Logger()

	// Nothing to grade until extraction produced text.
	if !submission.HasText() {
		logger.Info().Str("status", submission.ProcessingStatus).Msg("skipping grading, no extracted text")
		return dto.GradeReport{}, nil
	}

	if _, err := s.exams.GetByID(ctx, submission.ExamID); err != nil {
		return dto.GradeReport{}, fmt.Errorf("%w: id %d", ErrExamNotFound, submission.ExamID)
	}

	questions, err := s.questions.ListByExam(ctx, submission.ExamID)
	if err != nil {
		return dto.GradeReport{}, fmt.Errorf("failed to load questions: %w", err)
	}
	if len(questions) == 0 {
		logger.Info().Msg("exam has no questions, nothing to grade")
		return dto.GradeReport{}, nil
	}

	answers := segment.Parse(submission.ExtractedText)
	report := dto.GradeReport{QuestionsConsidered: len(questions)}

	for _, question := range questions {
		answerText, found := answers[question.QuestionNumber]
		if !found {
			continue
		}

		outcome, err := s.gradeAnswer(ctx, question, answerText)
		if err != nil {
			logger.Warn().Err(err).Int("question_number", question.QuestionNumber).Msg("question grading failed, continuing")
			continue
		}

		answer := &models.StudentAnswer{
			SubmissionID:    submission.ID,
			StudentID:       submission.StudentID,
			QuestionID:      question.ID,
			ExtractedAnswer: answerText,
			ConfidenceScore: outcome.Confidence,
		}
		result := &models.GradingResult{
			ExamID:       submission.ExamID,
			StudentID:    submission.StudentID,
			QuestionID:   question.ID,
			AIMarks:      outcome.Marks,
			FinalMarks:   outcome.Marks,
			Feedback:     strings.TrimSpace(s.sanitizer.Sanitize(outcome.Feedback)),
			AIConfidence: outcome.Confidence,
		}
		if err := s.grading.ReplacePair(ctx, answer, result); err != nil {
			logger.Error().Err(err).Int("question_number", question.QuestionNumber).Msg("failed to persist grading result")
			continue
		}

		report.GradedCount++
	}

	if report.GradedCount > 0 && s.invalidator != nil {
		s.invalidator.InvalidateExamStatus(ctx, submission.ExamID)
	}

	s.events.Publish(PipelineEvent{
		SubmissionID: submission.ID,
		ExamID:       submission.ExamID,
		Stage:        StageGrading,
		Status:       fmt.Sprintf("graded %d/%d", report.GradedCount, report.QuestionsConsidered),
	})
	logger.Info().Int("graded", report.GradedCount).Int("questions", report.QuestionsConsidered).Msg("submission graded")
	return report, nil
}

func (s *gradingService) RegradeAll(ctx context.Context, examID uint) (dto.RegradeReport, error) {
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		return dto.RegradeReport{}, fmt.Errorf("%w: id %d", ErrExamNotFound, examID)
	}

	submissions, err := s.submissions.ListByExamAndStatus(ctx, examID, models.SubmissionStatusProcessed)
	if err != nil {
		return dto.RegradeReport{}, fmt.Errorf("failed to list processed submissions: %w", err)
	}

	report := dto.RegradeReport{Total: len(submissions)}
	for _, submission := range submissions {
		entry := dto.RegradeEntry{SubmissionID: submission.ID}

		gradeReport, err := s.gradeSafely(ctx, submission.ID)
		if err != nil {
			entry.Status = dto.RegradeStatusFailed
			entry.Error = err.Error()
			report.Failed++
		} else {
			entry.Status = dto.RegradeStatusSuccess
			entry.GradedCount = gradeReport.GradedCount
			report.Succeeded++
		}
		report.Results = append(report.Results, entry)
	}

	s.logger.Info().
		Uint("exam_id", examID).
		Int("total", report.Total).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("exam regraded")
	return report, nil
}

// gradeSafely isolates one submission's regrade so a panic inside grading
// cannot abort the rest of the exam.
func (s *gradingService) gradeSafely(ctx context.Context, submissionID uint) (report dto.GradeReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("grading panic: %v", r)
		}
	}()
	return s.GradeSubmission(ctx, submissionID)
}

func (s *gradingService) gradeAnswer(ctx context.Context, question models.Question, answerText string) (ai.GradingOutcome, error) {
	gradeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.grader.Grade(gradeCtx, ai.GradingInput{
		QuestionNumber: question.QuestionNumber,
		QuestionText:   question.Text,
		ModelAnswer:    question.SampleAnswer,
		MarkingScheme:  question.MarkingScheme,
		MaxMarks:       question.MaxMarks,
		Keywords:       question.KeywordList(),
		StudentAnswer:  answerText,
	})
}
