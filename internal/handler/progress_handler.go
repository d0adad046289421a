package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/autograder-io/examflow-api/internal/service"
)

// ProgressHandler streams pipeline events for one exam over a websocket so
// the grading dashboard can render live progress without polling.
type ProgressHandler struct {
	events *service.PipelineEvents
	logger zerolog.Logger
}

// NewProgressHandler creates a progress handler instance.
func NewProgressHandler(events *service.PipelineEvents, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		events: events,
		logger: logger.With().Str("component", "progress_handler").Logger(),
	}
}

// Register binds the websocket upgrade route under the provided router group.
func (h *ProgressHandler) Register(router fiber.Router) {
	router.Use("/exams/:examID/progress", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/exams/:examID/progress", websocket.New(h.handleConnection))
}

func (h *ProgressHandler) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	examID, err := strconv.ParseUint(conn.Params("examID"), 10, 64)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusBadRequest, "invalid exam id"))
		return
	}

	events, cancel := h.events.Subscribe(uint(examID))
	defer cancel()

	// Reads are discarded; the socket exists so the client notices when we
	// go away and vice versa.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	logger := h.logger.With().Uint64("exam_id", examID).Logger()
	logger.Debug().Msg("progress stream opened")

	for {
		select {
		case <-done:
			logger.Debug().Msg("progress stream closed by client")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Msg("progress stream write failed")
				return
			}
		}
	}
}
