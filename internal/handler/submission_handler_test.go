package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/autograder-io/examflow-api/internal/dto"
	"github.com/autograder-io/examflow-api/internal/handler"
	"github.com/autograder-io/examflow-api/internal/service"
)

type stubIngestService struct {
	report       dto.BatchReport
	err          error
	lastExamID   uint
	lastUploader uint
	lastFiles    []dto.BatchFile
	deleteErr    error
	deletedID    uint
}

func (s *stubIngestService) SubmitBatch(_ context.Context, examID, uploadedBy uint, files []dto.BatchFile) (dto.BatchReport, error) {
	s.lastExamID = examID
	s.lastUploader = uploadedBy
	s.lastFiles = files
	return s.report, s.err
}

func (s *stubIngestService) SubmitArchive(_ context.Context, examID, uploadedBy uint, _ string, _ []byte) (dto.BatchReport, error) {
	s.lastExamID = examID
	s.lastUploader = uploadedBy
	return s.report, s.err
}

func (s *stubIngestService) DeleteSubmission(_ context.Context, submissionID, _ uint) error {
	s.deletedID = submissionID
	return s.deleteErr
}

type stubStatusService struct {
	submission dto.SubmissionResponse
	err        error
}

func (s *stubStatusService) SubmissionStatus(_ context.Context, _ uint) (dto.SubmissionResponse, error) {
	return s.submission, s.err
}

func (s *stubStatusService) ExamUploadStatus(_ context.Context, _ uint) ([]dto.SubmissionResponse, error) {
	return []dto.SubmissionResponse{s.submission}, s.err
}

func (s *stubStatusService) ExamGradingStatus(_ context.Context, examID uint) (dto.ExamGradingStatus, error) {
	return dto.ExamGradingStatus{ExamID: examID}, s.err
}

func (s *stubStatusService) InvalidateExamStatus(_ context.Context, _ uint) {}

type stubPipelineService struct {
	report dto.GradeReport
	err    error
}

func (s *stubPipelineService) Process(_ context.Context, _ uint) {}

func (s *stubPipelineService) Reprocess(_ context.Context, _ uint) (dto.GradeReport, error) {
	return s.report, s.err
}

func newSubmissionApp(ingest *stubIngestService, status *stubStatusService, pipeline *stubPipelineService) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(42))
		c.Locals("user_role", "teacher")
		return c.Next()
	})
	handler.NewSubmissionHandler(ingest, status, pipeline, zerolog.Nop()).Register(group)
	return app
}

func buildBatchRequest(t *testing.T, files map[string][]byte, studentIDs []string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, data := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for _, id := range studentIDs {
		require.NoError(t, writer.WriteField("student_ids", id))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/exams/7/submissions/batch", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestSubmissionHandlerBatchUpload(t *testing.T) {
	ingest := &stubIngestService{report: dto.BatchReport{
		Total:     1,
		Succeeded: []dto.BatchItemSuccess{{SubmissionID: 9, StudentIdentifier: "STU001", FileName: "a.txt"}},
	}}
	app := newSubmissionApp(ingest, &stubStatusService{}, &stubPipelineService{})

	req := buildBatchRequest(t, map[string][]byte{"a.txt": []byte("Q1: x")}, []string{"STU001"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool            `json:"success"`
		Data    dto.BatchReport `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()

	require.True(t, payload.Success)
	require.Equal(t, 1, payload.Data.Total)
	require.Equal(t, uint(7), ingest.lastExamID)
	require.Equal(t, uint(42), ingest.lastUploader)
	require.Len(t, ingest.lastFiles, 1)
	require.Equal(t, "STU001", ingest.lastFiles[0].StudentIdentifier)
}

func TestSubmissionHandlerBatchCountMismatch(t *testing.T) {
	ingest := &stubIngestService{}
	app := newSubmissionApp(ingest, &stubStatusService{}, &stubPipelineService{})

	req := buildBatchRequest(t, map[string][]byte{"a.txt": []byte("Q1: x")}, []string{"STU001", "STU002"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Empty(t, ingest.lastFiles)
}

func TestSubmissionHandlerDeleteForbidden(t *testing.T) {
	ingest := &stubIngestService{deleteErr: service.ErrNotSubmissionOwner}
	app := newSubmissionApp(ingest, &stubStatusService{}, &stubPipelineService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/submissions/5", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestSubmissionHandlerGetNotFound(t *testing.T) {
	status := &stubStatusService{err: service.ErrSubmissionNotFound}
	app := newSubmissionApp(&stubIngestService{}, status, &stubPipelineService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/404", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSubmissionHandlerReprocess(t *testing.T) {
	pipeline := &stubPipelineService{report: dto.GradeReport{QuestionsConsidered: 3, GradedCount: 2}}
	app := newSubmissionApp(&stubIngestService{}, &stubStatusService{}, pipeline)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/5/reprocess", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Data dto.GradeReport `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()
	require.Equal(t, 2, payload.Data.GradedCount)
}

func TestSubmissionHandlerInvalidID(t *testing.T) {
	app := newSubmissionApp(&stubIngestService{}, &stubStatusService{}, &stubPipelineService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/abc", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
