package service

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/autograder-io/examflow-api/internal/config"
	"github.com/autograder-io/examflow-api/internal/dto"
	"github.com/autograder-io/examflow-api/internal/models"
	"github.com/autograder-io/examflow-api/internal/observability"
	"github.com/autograder-io/examflow-api/internal/repository"
	"github.com/autograder-io/examflow-api/pkg/storage"
)

// IngestService accepts uploaded answer sheets, records them, and hands them
// to the processing queue. Batch intake is best effort: one bad file never
// blocks its siblings.
type IngestService interface {
	SubmitBatch(ctx context.Context, examID, uploadedBy uint, files []dto.BatchFile) (dto.BatchReport, error)
	SubmitArchive(ctx context.Context, examID, uploadedBy uint, archiveName string, archive []byte) (dto.BatchReport, error)
	DeleteSubmission(ctx context.Context, submissionID, requestedBy uint) error
}

type ingestService struct {
	cfg         *config.Config
	exams       repository.ExamRepository
	students    repository.StudentRepository
	submissions repository.SubmissionRepository
	grading     repository.GradingRepository
	store       storage.FileStore
	queue       SubmissionQueue
	tombstones  *Tombstones
	events      *PipelineEvents
	logger      zerolog.Logger
	tracer      trace.Tracer
}

func NewIngestService(
	cfg *config.Config,
	exams repository.ExamRepository,
	students repository.StudentRepository,
	submissions repository.SubmissionRepository,
	grading repository.GradingRepository,
	store storage.FileStore,
	queue SubmissionQueue,
	tombstones *Tombstones,
	events *PipelineEvents,
	logger zerolog.Logger,
) IngestService {
	return &ingestService{
		cfg:         cfg,
		exams:       exams,
		students:    students,
		submissions: submissions,
		grading:     grading,
		store:       store,
		queue:       queue,
		tombstones:  tombstones,
		events:      events,
		logger:      logger.With().Str("component", "ingest_service").Logger(),
		tracer:      otel.Tracer("github.com/autograder-io/examflow-api/internal/service/ingest"),
	}
}

func (s *ingestService) SubmitBatch(ctx context.Context, examID, uploadedBy uint, files []dto.BatchFile) (dto.BatchReport, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.batch", trace.WithAttributes(
		attribute.Int("exam.id", int(examID)),
		attribute.Int("batch.size", len(files)),
	))
	defer span.End()

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return dto.BatchReport{}, fmt.Errorf("%w: id %d", ErrExamNotFound, examID)
	}

	report := dto.BatchReport{Total: len(files)}
	for _, file := range files {
		success, reason := s.ingestOne(ctx, exam, uploadedBy, file)
		if reason != "" {
			report.Failed = append(report.Failed, dto.BatchItemFailure{
				FileName:          file.FileName,
				StudentIdentifier: file.StudentIdentifier,
				Reason:            reason,
			})
			continue
		}
		report.Succeeded = append(report.Succeeded, success)
	}

	s.logger.Info().
		Uint("exam_id", examID).
		Int("total", report.Total).
		Int("succeeded", len(report.Succeeded)).
		Int("failed", len(report.Failed)).
		Msg("batch upload accepted")
	return report, nil
}

func (s *ingestService) SubmitArchive(ctx context.Context, examID, uploadedBy uint, archiveName string, archive []byte) (dto.BatchReport, error) {
	ctx, span := s.tracer.Start(ctx, "ingest.archive", trace.WithAttributes(
		attribute.Int("exam.id", int(examID)),
		attribute.Int("archive.bytes", len(archive)),
	))
	defer span.End()

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return dto.BatchReport{}, fmt.Errorf("%w: id %d", ErrExamNotFound, examID)
	}

	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return dto.BatchReport{}, fmt.Errorf("%w: %s", ErrInvalidArchive, archiveName)
	}

	var report dto.BatchReport
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		base := path.Base(entry.Name)
		// macOS zips carry resource-fork noise; not student work.
		if strings.HasPrefix(base, ".") || strings.HasPrefix(entry.Name, "__MACOSX/") {
			continue
		}

		report.Total++

		if strings.EqualFold(filepath.Ext(base), ".zip") {
			report.Failed = append(report.Failed, dto.BatchItemFailure{
				FileName: base,
				Reason:   "nested archives are not supported",
			})
			continue
		}

		identifier, ok := studentIdentifierFromName(base)
		if !ok {
			report.Failed = append(report.Failed, dto.BatchItemFailure{
				FileName: base,
				Reason:   "file name must start with the student identifier followed by an underscore",
			})
			continue
		}

		data, err := readArchiveEntry(entry)
		if err != nil {
			report.Failed = append(report.Failed, dto.BatchItemFailure{
				FileName:          base,
				StudentIdentifier: identifier,
				Reason:            "failed to read archive entry",
			})
			continue
		}

		file := dto.BatchFile{FileName: base, StudentIdentifier: identifier, Data: data}
		success, reason := s.ingestOne(ctx, exam, uploadedBy, file)
		if reason != "" {
			report.Failed = append(report.Failed, dto.BatchItemFailure{
				FileName:          base,
				StudentIdentifier: identifier,
				Reason:            reason,
			})
			continue
		}
		report.Succeeded = append(report.Succeeded, success)
	}

	s.logger.Info().
		Uint("exam_id", examID).
		Str("archive", archiveName).
		Int("total", report.Total).
		Int("succeeded", len(report.Succeeded)).
		Int("failed", len(report.Failed)).
		Msg("archive upload accepted")
	return report, nil
}

func (s *ingestService) DeleteSubmission(ctx context.Context, submissionID, requestedBy uint) error {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("%w: id %d", ErrSubmissionNotFound, submissionID)
	}

	if submission.UploadedBy != requestedBy {
		return ErrNotSubmissionOwner
	}

	// An in-flight worker must not write this submission back after we
	// remove it.
	if submission.ProcessingStatus == models.SubmissionStatusProcessing {
		s.tombstones.Mark(submission.ID)
	}

	if err := s.store.Delete(ctx, submission.StorageKey); err != nil {
		s.logger.Warn().Err(err).Str("storage_key", submission.StorageKey).Msg("failed to remove stored file")
	}

	if err := s.grading.DeleteBySubmission(ctx, submission.ID); err != nil {
		return fmt.Errorf("failed to delete grading records: %w", err)
	}
	if err := s.submissions.Delete(ctx, submission.ID); err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}

	s.logger.Info().Uint("submission_id", submission.ID).Uint("requested_by", requestedBy).Msg("submission deleted")
	return nil
}

// ingestOne validates, stores, and records a single file. A non-empty reason
// means the file was rejected; the batch continues either way.
func (s *ingestService) ingestOne(ctx context.Context, exam models.Exam, uploadedBy uint, file dto.BatchFile) (dto.BatchItemSuccess, string) {
	identifier := strings.TrimSpace(file.StudentIdentifier)
	if identifier == "" {
		return s.reject("missing_identifier", "student identifier is required")
	}

	student, err := s.students.GetByCode(ctx, identifier)
	if err != nil {
		return s.reject("unknown_student", fmt.Sprintf("no student with identifier %q", identifier))
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.FileName), "."))
	if ext == "" {
		return s.reject("bad_extension", "file has no extension")
	}
	if !s.cfg.ExtensionAllowed(ext) {
		return s.reject("bad_extension", fmt.Sprintf("file type .%s is not allowed", ext))
	}

	if len(file.Data) == 0 {
		return s.reject("empty_file", "file is empty")
	}
	if int64(len(file.Data)) > s.cfg.MaxFileSize {
		return s.reject("too_large", fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSize))
	}
	if !contentMatchesExtension(ext, file.Data) {
		return s.reject("content_mismatch", fmt.Sprintf("file content does not look like .%s", ext))
	}

	key := fmt.Sprintf("%d/%s/%s.%s", exam.ID, student.Code, uuid.NewString(), ext)
	storageKey, err := s.store.Save(ctx, key, bytes.NewReader(file.Data))
	if err != nil {
		s.logger.Error().Err(err).Str("file", file.FileName).Msg("failed to store upload")
		return s.reject("storage_error", "failed to store file")
	}

	submission := &models.Submission{
		ExamID:           exam.ID,
		StudentID:        student.ID,
		UploadedBy:       uploadedBy,
		FileName:         sanitizeFileName(file.FileName),
		StorageKey:       storageKey,
		FileSize:         int64(len(file.Data)),
		FileType:         ext,
		ProcessingStatus: models.SubmissionStatusUploaded,
	}
	if err := s.submissions.Create(ctx, submission); err != nil {
		if delErr := s.store.Delete(ctx, storageKey); delErr != nil {
			s.logger.Warn().Err(delErr).Str("storage_key", storageKey).Msg("failed to clean up orphaned file")
		}
		s.logger.Error().Err(err).Str("file", file.FileName).Msg("failed to record submission")
		return s.reject("db_error", "failed to record submission")
	}

	s.queue.Enqueue(submission.ID)
	s.events.Publish(PipelineEvent{
		SubmissionID: submission.ID,
		ExamID:       exam.ID,
		Stage:        StageIngest,
		Status:       models.SubmissionStatusUploaded,
	})

	return dto.BatchItemSuccess{
		SubmissionID:      submission.ID,
		StudentIdentifier: student.Code,
		FileName:          submission.FileName,
	}, ""
}

func (s *ingestService) reject(label, reason string) (dto.BatchItemSuccess, string) {
	observability.IngestRejected().WithLabelValues(label).Inc()
	return dto.BatchItemSuccess{}, reason
}

// studentIdentifierFromName derives the student code from an archive entry
// named "<identifier>_<anything>.<ext>".
func studentIdentifierFromName(name string) (string, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	identifier, _, found := strings.Cut(stem, "_")
	identifier = strings.TrimSpace(identifier)
	if !found || identifier == "" {
		return "", false
	}
	return identifier, true
}

// contentMatchesExtension rejects files whose bytes contradict their claimed
// format. Plain text is not sniffable reliably, so txt passes through.
func contentMatchesExtension(ext string, data []byte) bool {
	switch ext {
	case "pdf":
		return mimetype.Detect(data).Is("application/pdf")
	case "jpg", "jpeg", "png", "gif", "bmp", "tiff", "webp":
		return strings.HasPrefix(mimetype.Detect(data).String(), "image/")
	default:
		return true
	}
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func sanitizeFileName(name string) string {
	name = path.Base(filepath.ToSlash(name))
	name = unsafeFileChars.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}

func readArchiveEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
