package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const progressBufferSize = 16

// Pipeline stages referenced by observability events.
const (
	StageIngest       = "ingest"
	StageExtraction   = "extraction"
	StageSegmentation = "segmentation"
	StageGrading      = "grading"
)

// PipelineEvent is emitted at every submission state transition, keyed by
// submission id and stage.
type PipelineEvent struct {
	SubmissionID uint      `json:"submission_id"`
	ExamID       uint      `json:"exam_id"`
	Stage        string    `json:"stage"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	Source       string    `json:"source"`
	EmittedAt    time.Time `json:"emitted_at"`
}

// PipelineEvents publishes stage-transition events to NATS for external
// monitoring and fans them out to in-process subscribers feeding the
// websocket progress stream. Both sinks are best effort: event loss never
// affects pipeline correctness.
type PipelineEvents struct {
	nats    *nats.Conn
	subject string
	logger  zerolog.Logger
	nodeID  string

	mu          sync.RWMutex
	subscribers map[uint]map[chan PipelineEvent]struct{}
}

// NewPipelineEvents constructs the event publisher. natsConn may be nil when
// no broker is configured; events then stay in-process.
func NewPipelineEvents(natsConn *nats.Conn, subject string, logger zerolog.Logger) *PipelineEvents {
	if subject == "" {
		subject = "examflow.pipeline.events"
	}
	return &PipelineEvents{
		nats:        natsConn,
		subject:     subject,
		logger:      logger.With().Str("component", "pipeline_events").Logger(),
		nodeID:      uuid.NewString(),
		subscribers: make(map[uint]map[chan PipelineEvent]struct{}),
	}
}

// Publish emits one event. Slow in-process subscribers are skipped rather
// than blocked on; NATS errors are logged and swallowed.
func (p *PipelineEvents) Publish(event PipelineEvent) {
	if p == nil {
		return
	}

	event.Source = p.nodeID
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now().UTC()
	}

	p.mu.RLock()
	for ch := range p.subscribers[event.ExamID] {
		select {
		case ch <- event:
		default:
		}
	}
	p.mu.RUnlock()

	if p.nats == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to encode pipeline event")
		return
	}
	if err := p.nats.Publish(p.subject, payload); err != nil {
		p.logger.Warn().Err(err).Uint("submission_id", event.SubmissionID).Msg("failed to publish pipeline event")
	}
}

// Subscribe registers a listener for one exam's events. The returned cancel
// function must be called to release the channel.
func (p *PipelineEvents) Subscribe(examID uint) (<-chan PipelineEvent, func()) {
	ch := make(chan PipelineEvent, progressBufferSize)

	p.mu.Lock()
	if p.subscribers[examID] == nil {
		p.subscribers[examID] = make(map[chan PipelineEvent]struct{})
	}
	p.subscribers[examID][ch] = struct{}{}
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if subs, ok := p.subscribers[examID]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(p.subscribers, examID)
			}
		}
		p.mu.Unlock()
		close(ch)
	}

	return ch, cancel
}
