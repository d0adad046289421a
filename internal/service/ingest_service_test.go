package service

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/autograder-io/examflow-api/internal/config"
	"github.com/autograder-io/examflow-api/internal/dto"
	"github.com/autograder-io/examflow-api/internal/models"
)

func newTestIngest(t *testing.T) (IngestService, *fakeSubmissionRepo, *fakeStore, *fakeQueue, *Tombstones) {
	t.Helper()

	cfg := &config.Config{
		AllowedExtensions: map[string]struct{}{"pdf": {}, "jpg": {}, "png": {}, "txt": {}},
		MaxFileSize:       1 << 20,
	}
	exams := &fakeExamRepo{exams: map[uint]models.Exam{7: {ID: 7, Name: "Midterm"}}}
	students := &fakeStudentRepo{students: []models.Student{
		{ID: 1, Code: "STU001", FullName: "Ada Lovelace"},
		{ID: 2, Code: "STU002", FullName: "Alan Turing"},
	}}
	submissions := newFakeSubmissionRepo()
	grading := newFakeGradingRepo()
	store := newFakeStore()
	queue := &fakeQueue{}
	tombstones := NewTombstones()
	events := NewPipelineEvents(nil, "", testLogger())

	svc := NewIngestService(cfg, exams, students, submissions, grading, store, queue, tombstones, events, testLogger())
	return svc, submissions, store, queue, tombstones
}

func TestSubmitBatchMixedOutcomes(t *testing.T) {
	svc, submissions, store, queue, _ := newTestIngest(t)

	report, err := svc.SubmitBatch(context.Background(), 7, 42, []dto.BatchFile{
		{FileName: "ada.txt", StudentIdentifier: "STU001", Data: []byte("Q1: answer")},
		{FileName: "ghost.txt", StudentIdentifier: "STU999", Data: []byte("Q1: answer")},
	})
	require.NoError(t, err)

	require.Equal(t, 2, report.Total)
	require.Len(t, report.Succeeded, 1)
	require.Len(t, report.Failed, 1)
	require.Equal(t, report.Total, len(report.Succeeded)+len(report.Failed))

	require.Equal(t, "STU001", report.Succeeded[0].StudentIdentifier)
	require.Equal(t, "ghost.txt", report.Failed[0].FileName)
	require.Contains(t, report.Failed[0].Reason, "STU999")

	// The accepted file is stored, recorded as uploaded, and queued.
	require.Len(t, store.files, 1)
	require.Len(t, queue.ids, 1)
	row, err := submissions.GetByID(context.Background(), report.Succeeded[0].SubmissionID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusUploaded, row.ProcessingStatus)
	require.Equal(t, uint(42), row.UploadedBy)
}

func TestSubmitBatchUnknownExam(t *testing.T) {
	svc, _, _, _, _ := newTestIngest(t)

	_, err := svc.SubmitBatch(context.Background(), 999, 42, []dto.BatchFile{
		{FileName: "ada.txt", StudentIdentifier: "STU001", Data: []byte("x")},
	})
	require.ErrorIs(t, err, ErrExamNotFound)
}

func TestSubmitBatchRejectsBadFiles(t *testing.T) {
	svc, _, store, queue, _ := newTestIngest(t)

	report, err := svc.SubmitBatch(context.Background(), 7, 42, []dto.BatchFile{
		{FileName: "ada.exe", StudentIdentifier: "STU001", Data: []byte("MZ")},
		{FileName: "ada.txt", StudentIdentifier: "STU001", Data: bytes.Repeat([]byte("a"), (1<<20)+1)},
		{FileName: "ada.txt", StudentIdentifier: "STU001", Data: nil},
		{FileName: "fake.pdf", StudentIdentifier: "STU001", Data: []byte("just text, no pdf header")},
		{FileName: "ada.txt", StudentIdentifier: "  ", Data: []byte("x")},
	})
	require.NoError(t, err)

	require.Equal(t, 5, report.Total)
	require.Empty(t, report.Succeeded)
	require.Len(t, report.Failed, 5)
	require.Contains(t, report.Failed[0].Reason, ".exe")
	require.Contains(t, report.Failed[1].Reason, "byte limit")
	require.Contains(t, report.Failed[2].Reason, "empty")
	require.Contains(t, report.Failed[3].Reason, ".pdf")
	require.Contains(t, report.Failed[4].Reason, "identifier")

	require.Empty(t, store.files)
	require.Empty(t, queue.ids)
}

func TestSubmitBatchEmptyReturnsEmptyReport(t *testing.T) {
	svc, _, store, queue, _ := newTestIngest(t)

	report, err := svc.SubmitBatch(context.Background(), 7, 42, nil)
	require.NoError(t, err)
	require.Zero(t, report.Total)
	require.Empty(t, report.Succeeded)
	require.Empty(t, report.Failed)
	require.Empty(t, store.files)
	require.Empty(t, queue.ids)
}

func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, data := range entries {
		entry, err := writer.Create(name)
		require.NoError(t, err)
		_, err = entry.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func TestSubmitArchiveDerivesIdentifiers(t *testing.T) {
	svc, _, _, queue, _ := newTestIngest(t)

	archive := buildZip(t, map[string][]byte{
		"STU001_midterm.txt":   []byte("Q1: first"),
		"STU002_midterm.txt":   []byte("Q1: second"),
		"noidentifier.txt":     []byte("Q1: orphan"),
		".DS_Store":            []byte("junk"),
		"__MACOSX/._thumbnail": []byte("junk"),
	})

	report, err := svc.SubmitArchive(context.Background(), 7, 42, "midterm.zip", archive)
	require.NoError(t, err)

	// Hidden entries are not student work and do not count at all.
	require.Equal(t, 3, report.Total)
	require.Len(t, report.Succeeded, 2)
	require.Len(t, report.Failed, 1)
	require.Equal(t, "noidentifier.txt", report.Failed[0].FileName)
	require.Contains(t, report.Failed[0].Reason, "underscore")
	require.Len(t, queue.ids, 2)
}

func TestSubmitArchiveRejectsNestedZip(t *testing.T) {
	svc, _, _, _, _ := newTestIngest(t)

	archive := buildZip(t, map[string][]byte{
		"STU001_bundle.zip": []byte("PK..."),
	})

	report, err := svc.SubmitArchive(context.Background(), 7, 42, "midterm.zip", archive)
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	require.Contains(t, report.Failed[0].Reason, "nested")
}

func TestSubmitArchiveInvalid(t *testing.T) {
	svc, _, _, _, _ := newTestIngest(t)

	_, err := svc.SubmitArchive(context.Background(), 7, 42, "broken.zip", []byte("not a zip"))
	require.ErrorIs(t, err, ErrInvalidArchive)
}

func TestDeleteSubmissionOwnerOnly(t *testing.T) {
	svc, submissions, store, _, _ := newTestIngest(t)

	report, err := svc.SubmitBatch(context.Background(), 7, 42, []dto.BatchFile{
		{FileName: "ada.txt", StudentIdentifier: "STU001", Data: []byte("Q1: answer")},
	})
	require.NoError(t, err)
	id := report.Succeeded[0].SubmissionID

	err = svc.DeleteSubmission(context.Background(), id, 99)
	require.ErrorIs(t, err, ErrNotSubmissionOwner)

	require.NoError(t, svc.DeleteSubmission(context.Background(), id, 42))
	_, err = submissions.GetByID(context.Background(), id)
	require.Error(t, err)
	require.Empty(t, store.files)

	err = svc.DeleteSubmission(context.Background(), id, 42)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestDeleteProcessingSubmissionTombstones(t *testing.T) {
	svc, submissions, _, _, tombstones := newTestIngest(t)

	report, err := svc.SubmitBatch(context.Background(), 7, 42, []dto.BatchFile{
		{FileName: "ada.txt", StudentIdentifier: "STU001", Data: []byte("Q1: answer")},
	})
	require.NoError(t, err)
	id := report.Succeeded[0].SubmissionID

	require.NoError(t, submissions.UpdateFields(context.Background(), id, map[string]interface{}{
		"processing_status": models.SubmissionStatusProcessing,
	}))

	require.NoError(t, svc.DeleteSubmission(context.Background(), id, 42))
	require.True(t, tombstones.Contains(id))
}

func TestSanitizeFileName(t *testing.T) {
	require.Equal(t, "ada_lovelace.txt", sanitizeFileName("ada lovelace.txt"))
	require.Equal(t, "passwd", sanitizeFileName("../../etc/passwd"))
	require.Equal(t, "upload", sanitizeFileName(""))
	require.False(t, strings.ContainsAny(sanitizeFileName("a/b\\c:d.txt"), "/\\:"))
}
