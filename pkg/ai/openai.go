package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	gradingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "examflow",
		Subsystem: "ai",
		Name:      "grading_duration_seconds",
		Help:      "Duration of AI grading requests",
	}, []string{"model"})

	gradingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "examflow",
		Subsystem: "ai",
		Name:      "grading_failures_total",
		Help:      "Number of AI grading failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI grader.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIGrader implements Grader against the OpenAI chat completion API.
type OpenAIGrader struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGrader builds a new grader using the provided configuration.
func NewOpenAIGrader(cfg OpenAIConfig) (*OpenAIGrader, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	tracer := otel.Tracer("github.com/autograder-io/examflow-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIGrader{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Grade sends the grading request to OpenAI and parses the response.
func (g *OpenAIGrader) Grade(parent context.Context, input GradingInput) (GradingOutcome, error) {
	ctx, span := g.tracer.Start(parent, "openai.grade", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.Int("question_number", input.QuestionNumber),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: graderSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildGradingPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := g.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	gradingDuration.WithLabelValues(g.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		gradingFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return GradingOutcome{}, fmt.Errorf("openai grade: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		gradingFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return GradingOutcome{}, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	outcome, err := parseGradingResponse(content, input.MaxMarks)
	if err != nil {
		gradingFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return GradingOutcome{}, err
	}

	return outcome, nil
}

func graderSystemPrompt() string {
	return "You are an automated exam grader. Respond with a JSON object containing marks (absolute marks awarded), confide" +
		"nce (0-1), and feedback (concise justification referencing the marking scheme). Award partial credit where the marki" +
		"ng scheme allows it, and never exceed the maximum marks."
}

func buildGradingPrompt(input GradingInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Question\n")
	builder.WriteString(input.QuestionText)
	builder.WriteString("\n\n## Model Answer\n")
	builder.WriteString(input.ModelAnswer)
	if input.MarkingScheme != "" {
		builder.WriteString("\n\n## Marking Scheme\n")
		builder.WriteString(input.MarkingScheme)
	}
	if len(input.Keywords) > 0 {
		builder.WriteString("\n\n## Expected Keywords\n")
		builder.WriteString(strings.Join(input.Keywords, ", "))
	}
	builder.WriteString(fmt.Sprintf("\n\n## Maximum Marks\n%g", input.MaxMarks))
	builder.WriteString("\n\n## Student Answer\n")
	builder.WriteString(input.StudentAnswer)
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseGradingResponse(content string, maxMarks float64) (GradingOutcome, error) {
	type payload struct {
		Marks      float64 `json:"marks"`
		Confidence float64 `json:"confidence"`
		Feedback   string  `json:"feedback"`
	}

	var data payload
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return GradingOutcome{}, fmt.Errorf("parse grading json: %w", err)
	}

	if data.Marks < 0 {
		data.Marks = 0
	}
	if maxMarks > 0 && data.Marks > maxMarks {
		data.Marks = maxMarks
	}
	if data.Confidence < 0 {
		data.Confidence = 0
	}
	if data.Confidence > 1 {
		data.Confidence = 1
	}

	return GradingOutcome{
		Marks:      data.Marks,
		Confidence: data.Confidence,
		Feedback:   data.Feedback,
	}, nil
}
