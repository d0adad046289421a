package handler

import (
	"errors"
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/autograder-io/examflow-api/internal/dto"
	"github.com/autograder-io/examflow-api/internal/service"
	"github.com/autograder-io/examflow-api/internal/utils"
)

// SubmissionHandler wires answer-sheet upload, status, and lifecycle routes.
type SubmissionHandler struct {
	ingest   service.IngestService
	status   service.StatusService
	pipeline service.PipelineService
	logger   zerolog.Logger
}

// NewSubmissionHandler creates a submission handler instance.
func NewSubmissionHandler(
	ingest service.IngestService,
	status service.StatusService,
	pipeline service.PipelineService,
	logger zerolog.Logger,
) *SubmissionHandler {
	return &SubmissionHandler{
		ingest:   ingest,
		status:   status,
		pipeline: pipeline,
		logger:   logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register binds submission routes under the provided router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Post("/exams/:examID/submissions/batch", h.uploadBatch)
	router.Post("/exams/:examID/submissions/archive", h.uploadArchive)
	router.Get("/exams/:examID/submissions", h.listByExam)
	router.Get("/submissions/:id", h.get)
	router.Get("/submissions/:id/status", h.rawStatus)
	router.Post("/submissions/:id/reprocess", h.reprocess)
	router.Delete("/submissions/:id", h.delete)
}

func (h *SubmissionHandler) uploadBatch(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form required")
	}

	fileHeaders := form.File["files"]
	studentIDs := form.Value["student_ids"]
	if len(fileHeaders) != len(studentIDs) {
		return utils.SendError(c, fiber.StatusBadRequest, service.ErrBatchSizeMismatch.Error())
	}

	files := make([]dto.BatchFile, 0, len(fileHeaders))
	for i, header := range fileHeaders {
		data, err := readMultipartFile(header)
		if err != nil {
			requestLogger(h.logger, c).Warn().Err(err).Str("file", header.Filename).Msg("failed to read uploaded file")
			return utils.SendError(c, fiber.StatusBadRequest, "failed to read uploaded file "+header.Filename)
		}
		files = append(files, dto.BatchFile{
			FileName:          header.Filename,
			StudentIdentifier: studentIDs[i],
			Data:              data,
		})
	}

	report, err := h.ingest.SubmitBatch(c.Context(), examID, userIDFromContext(c), files)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "batch accepted", report)
}

func (h *SubmissionHandler) uploadArchive(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	header, err := c.FormFile("archive")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "archive file required")
	}

	data, err := readMultipartFile(header)
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Str("file", header.Filename).Msg("failed to read uploaded archive")
		return utils.SendError(c, fiber.StatusBadRequest, "failed to read uploaded archive")
	}

	report, err := h.ingest.SubmitArchive(c.Context(), examID, userIDFromContext(c), header.Filename, data)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "archive accepted", report)
}

func (h *SubmissionHandler) listByExam(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, err := h.status.ExamUploadStatus(c.Context(), examID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.status.SubmissionStatus(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

// rawStatus serves the lightweight polling payload used by upload progress
// bars: just the state machine fields.
func (h *SubmissionHandler) rawStatus(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.status.SubmissionStatus(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission status retrieved", fiber.Map{
		"id":                submission.ID,
		"processing_status": submission.ProcessingStatus,
		"error_message":     submission.ErrorMessage,
		"processed_at":      submission.ProcessedAt,
	})
}

func (h *SubmissionHandler) reprocess(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	report, err := h.pipeline.Reprocess(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission reprocessed", report)
}

func (h *SubmissionHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.ingest.DeleteSubmission(c.Context(), id, userIDFromContext(c)); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission deleted", fiber.Map{"id": id})
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exam not found")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrNotSubmissionOwner):
		return utils.SendError(c, fiber.StatusForbidden, "only the uploader can delete a submission")
	case errors.Is(err, service.ErrBatchSizeMismatch),
		errors.Is(err, service.ErrInvalidArchive),
		isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *SubmissionHandler) internalError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}

func readMultipartFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
