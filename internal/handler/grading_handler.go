package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/autograder-io/examflow-api/internal/service"
	"github.com/autograder-io/examflow-api/internal/utils"
)

// GradingHandler wires grading trigger and progress routes.
type GradingHandler struct {
	grading service.GradingService
	status  service.StatusService
	logger  zerolog.Logger
}

// NewGradingHandler creates a grading handler instance.
func NewGradingHandler(grading service.GradingService, status service.StatusService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		grading: grading,
		status:  status,
		logger:  logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register binds grading routes under the provided router group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Get("/exams/:examID/grading-status", h.gradingStatus)
	router.Post("/exams/:examID/regrade", h.regradeAll)
	router.Post("/submissions/:id/grade", h.gradeSubmission)
}

func (h *GradingHandler) gradingStatus(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	status, err := h.status.ExamGradingStatus(c.Context(), examID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grading status retrieved", status)
}

func (h *GradingHandler) regradeAll(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	report, err := h.grading.RegradeAll(c.Context(), examID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exam regraded", report)
}

func (h *GradingHandler) gradeSubmission(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	report, err := h.grading.GradeSubmission(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission graded", report)
}

func (h *GradingHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exam not found")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
