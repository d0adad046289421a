package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/autograder-io/examflow-api/internal/dto"
	"github.com/autograder-io/examflow-api/internal/models"
	"github.com/autograder-io/examflow-api/internal/observability"
	"github.com/autograder-io/examflow-api/internal/repository"
	"github.com/autograder-io/examflow-api/internal/segment"
	"github.com/autograder-io/examflow-api/pkg/ocr"
	"github.com/autograder-io/examflow-api/pkg/storage"
)

// PipelineService runs the post-upload lifecycle of a submission: text
// extraction, answer segmentation, and grading. Every run ends in a terminal
// state (processed or failed); a submission is never left in processing.
type PipelineService interface {
	// Process drives one submission through the pipeline. It is invoked by
	// dispatcher workers and never returns an error: failures are recorded
	// on the submission itself.
	Process(ctx context.Context, submissionID uint)

	// Reprocess re-runs extraction and grading synchronously, regardless of
	// the submission's current state.
	Reprocess(ctx context.Context, submissionID uint) (dto.GradeReport, error)
}

type pipelineService struct {
	submissions repository.SubmissionRepository
	store       storage.FileStore
	extractor   ocr.Extractor
	grading     GradingService
	events      *PipelineEvents
	tombstones  *Tombstones
	timeout     time.Duration
	logger      zerolog.Logger
	tracer      trace.Tracer
}

func NewPipelineService(
	submissions repository.SubmissionRepository,
	store storage.FileStore,
	extractor ocr.Extractor,
	grading GradingService,
	events *PipelineEvents,
	tombstones *Tombstones,
	adapterTimeout time.Duration,
	logger zerolog.Logger,
) PipelineService {
	if adapterTimeout <= 0 {
		adapterTimeout = time.Minute
	}
	return &pipelineService{
		submissions: submissions,
		store:       store,
		extractor:   extractor,
		grading:     grading,
		events:      events,
		tombstones:  tombstones,
		timeout:     adapterTimeout,
		logger:      logger.With().Str("component", "pipeline_service").Logger(),
		tracer:      otel.Tracer("github.com/autograder-io/examflow-api/internal/service/pipeline"),
	}
}

func (s *pipelineService) Process(ctx context.Context, submissionID uint) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("dequeued submission no longer exists")
		return
	}

	if s.abandoned(submission.ID) {
		return
	}

	if _, err := s.run(ctx, submission); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submissionID).Msg("pipeline run failed")
	}
}

func (s *pipelineService) Reprocess(ctx context.Context, submissionID uint) (dto.GradeReport, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return dto.GradeReport{}, fmt.Errorf("%w: id %d", ErrSubmissionNotFound, submissionID)
	}
	return s.run(ctx, submission)
}

// run executes extraction, segmentation, and grading for one submission.
// A deferred guard guarantees a terminal state even on panic.
func (s *pipelineService) run(ctx context.Context, submission models.Submission) (report dto.GradeReport, err error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.Int("submission.id", int(submission.ID)),
		attribute.String("submission.file_type", submission.FileType),
	))
	defer span.End()

	logger := s.logger.With().Uint("submission_id", submission.ID).Uint("exam_id", submission.ExamID).Logger()

	terminal := false
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("pipeline panicked")
			err = fmt.Errorf("pipeline panic: %v", r)
		}
		if !terminal {
			s.markFailed(ctx, submission, fmt.Sprintf("processing aborted: %v", err), 0)
		}
	}()

	if err := s.submissions.UpdateFields(ctx, submission.ID, map[string]any{
		"processing_status": models.SubmissionStatusProcessing,
		"error_message":     "",
	}); err != nil {
		terminal = true // row is gone or the database is down; nothing to finalize
		return dto.GradeReport{}, fmt.Errorf("failed to mark submission processing: %w", err)
	}
	s.publish(submission, StageExtraction, models.SubmissionStatusProcessing, "")

	data, err := s.store.Read(ctx, submission.StorageKey)
	if err != nil {
		terminal = true
		s.markFailed(ctx, submission, fmt.Sprintf("failed to read stored file: %v", err), 0)
		return dto.GradeReport{}, nil
	}

	extractCtx, cancel := context.WithTimeout(ctx, s.timeout)
	start := time.Now()
	result, err := s.extractor.Extract(extractCtx, data, submission.FileType)
	cancel()
	observability.ExtractionLatency().Observe(time.Since(start).Seconds())

	if s.abandoned(submission.ID) {
		terminal = true
		return dto.GradeReport{}, nil
	}

	if err != nil {
		terminal = true
		s.markFailed(ctx, submission, fmt.Sprintf("text extraction failed: %v", err), 0)
		return dto.GradeReport{}, nil
	}
	if result.Status != ocr.StatusSuccess || strings.TrimSpace(result.Text) == "" {
		terminal = true
		s.markFailed(ctx, submission, "no readable text found in file", result.Confidence)
		return dto.GradeReport{}, nil
	}

	answers := segment.Parse(result.Text)
	logger.Info().Int("answers", len(answers)).Float64("confidence", result.Confidence).Msg("text extracted")
	s.publish(submission, StageSegmentation, models.SubmissionStatusProcessing, "")

	now := time.Now().UTC()
	if err := s.submissions.UpdateFields(ctx, submission.ID, map[string]any{
		"processing_status": models.SubmissionStatusProcessed,
		"extracted_text":    result.Text,
		"confidence_score":  result.Confidence,
		"error_message":     "",
		"processed_at":      &now,
	}); err != nil {
		terminal = true
		s.markFailed(ctx, submission, fmt.Sprintf("failed to persist extracted text: %v", err), result.Confidence)
		return dto.GradeReport{}, nil
	}
	terminal = true
	observability.PipelineOutcomes().WithLabelValues(models.SubmissionStatusProcessed).Inc()
	s.publish(submission, StageExtraction, models.SubmissionStatusProcessed, "")

	if s.abandoned(submission.ID) {
		return dto.GradeReport{}, nil
	}

	report, gradeErr := s.grading.GradeSubmission(ctx, submission.ID)
	if gradeErr != nil {
		// Extraction already succeeded; a grading failure leaves the
		// submission processed and retryable via regrade.
		logger.Error().Err(gradeErr).Msg("grading failed after extraction")
		return report, gradeErr
	}
	return report, nil
}

// abandoned reports whether the submission was deleted mid-flight and clears
// its tombstone.
func (s *pipelineService) abandoned(submissionID uint) bool {
	if s.tombstones != nil && s.tombstones.Contains(submissionID) {
		s.tombstones.Clear(submissionID)
		s.logger.Info().Uint("submission_id", submissionID).Msg("submission deleted mid-pipeline, abandoning")
		return true
	}
	return false
}

// markFailed records a terminal failure. It writes with a detached context
// so shutdown or request cancellation cannot strand the submission in
// processing.
func (s *pipelineService) markFailed(ctx context.Context, submission models.Submission, message string, confidence float64) {
	if s.abandoned(submission.ID) {
		return
	}
	if message == "" {
		message = "processing failed"
	}

	now := time.Now().UTC()
	writeCtx := context.WithoutCancel(ctx)
	// A failed run must also drop text from any earlier successful run, or a
	// later grading pass would score the stale answers.
	if err := s.submissions.UpdateFields(writeCtx, submission.ID, map[string]any{
		"processing_status": models.SubmissionStatusFailed,
		"extracted_text":    "",
		"error_message":     message,
		"confidence_score":  confidence,
		"processed_at":      &now,
	}); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to record submission failure")
		return
	}

	observability.PipelineOutcomes().WithLabelValues(models.SubmissionStatusFailed).Inc()
	s.publish(submission, StageExtraction, models.SubmissionStatusFailed, message)
}

func (s *pipelineService) publish(submission models.Submission, stage, status, errMsg string) {
	s.events.Publish(PipelineEvent{
		SubmissionID: submission.ID,
		ExamID:       submission.ExamID,
		Stage:        stage,
		Status:       status,
		Error:        errMsg,
	})
}
