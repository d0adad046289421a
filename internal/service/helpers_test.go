package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/autograder-io/examflow-api/internal/models"
	"github.com/autograder-io/examflow-api/internal/repository"
	"github.com/autograder-io/examflow-api/pkg/ai"
	"github.com/autograder-io/examflow-api/pkg/ocr"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

var errNotFound = errors.New("not found")

type fakeExamRepo struct {
	exams map[uint]models.Exam
}

func (f *fakeExamRepo) GetByID(_ context.Context, id uint) (models.Exam, error) {
	exam, ok := f.exams[id]
	if !ok {
		return models.Exam{}, errNotFound
	}
	return exam, nil
}

type fakeStudentRepo struct {
	students []models.Student
}

func (f *fakeStudentRepo) GetByID(_ context.Context, id uint) (models.Student, error) {
	for _, student := range f.students {
		if student.ID == id {
			return student, nil
		}
	}
	return models.Student{}, errNotFound
}

func (f *fakeStudentRepo) GetByCode(_ context.Context, code string) (models.Student, error) {
	for _, student := range f.students {
		if student.Code == code {
			return student, nil
		}
	}
	return models.Student{}, errNotFound
}

func (f *fakeStudentRepo) ListByIDs(_ context.Context, ids []uint) ([]models.Student, error) {
	var out []models.Student
	for _, id := range ids {
		if student, err := f.GetByID(context.Background(), id); err == nil {
			out = append(out, student)
		}
	}
	return out, nil
}

type fakeQuestionRepo struct {
	questions []models.Question
}

func (f *fakeQuestionRepo) ListByExam(_ context.Context, examID uint) ([]models.Question, error) {
	var out []models.Question
	for _, question := range f.questions {
		if question.ExamID == examID {
			out = append(out, question)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionNumber < out[j].QuestionNumber })
	return out, nil
}

type fakeSubmissionRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]models.Submission
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{rows: make(map[uint]models.Submission)}
}

func (f *fakeSubmissionRepo) Create(_ context.Context, submission *models.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	submission.ID = f.nextID
	f.rows[submission.ID] = *submission
	return nil
}

func (f *fakeSubmissionRepo) GetByID(_ context.Context, id uint) (models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return models.Submission{}, errNotFound
	}
	return row, nil
}

func (f *fakeSubmissionRepo) Update(_ context.Context, submission *models.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[submission.ID]; !ok {
		return errNotFound
	}
	f.rows[submission.ID] = *submission
	return nil
}

func (f *fakeSubmissionRepo) UpdateFields(_ context.Context, id uint, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return errNotFound
	}
	for key, value := range fields {
		switch key {
		case "processing_status":
			row.ProcessingStatus = value.(string)
		case "extracted_text":
			row.ExtractedText = value.(string)
		case "error_message":
			row.ErrorMessage = value.(string)
		case "confidence_score":
			row.ConfidenceScore = value.(float64)
		case "processed_at":
			row.ProcessedAt = value.(*time.Time)
		default:
			return fmt.Errorf("unexpected field %q", key)
		}
	}
	f.rows[id] = row
	return nil
}

func (f *fakeSubmissionRepo) ListByExam(_ context.Context, examID uint) ([]models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Submission
	for _, row := range f.rows {
		if row.ExamID == examID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeSubmissionRepo) ListByExamAndStatus(_ context.Context, examID uint, status string) ([]models.Submission, error) {
	all, _ := f.ListByExam(context.Background(), examID)
	var out []models.Submission
	for _, row := range all {
		if row.ProcessingStatus == status {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeSubmissionRepo) Delete(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return errNotFound
	}
	delete(f.rows, id)
	return nil
}

type fakeGradingRepo struct {
	mu      sync.Mutex
	answers map[string]models.StudentAnswer
	results map[string]models.GradingResult
	failOn  string
}

func newFakeGradingRepo() *fakeGradingRepo {
	return &fakeGradingRepo{
		answers: make(map[string]models.StudentAnswer),
		results: make(map[string]models.GradingResult),
	}
}

func pairKey(submissionID, questionID uint) string {
	return fmt.Sprintf("%d:%d", submissionID, questionID)
}

func (f *fakeGradingRepo) ReplacePair(_ context.Context, answer *models.StudentAnswer, result *models.GradingResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pairKey(answer.SubmissionID, answer.QuestionID)
	if f.failOn == key {
		return errors.New("forced persistence failure")
	}
	f.answers[key] = *answer
	f.results[key] = *result
	return nil
}

func (f *fakeGradingRepo) CountsBySubmission(_ context.Context, submissionIDs []uint) (map[uint]repository.PairCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uint]repository.PairCounts, len(submissionIDs))
	for _, id := range submissionIDs {
		counts := repository.PairCounts{SubmissionID: id}
		for _, answer := range f.answers {
			if answer.SubmissionID == id {
				counts.Answers++
			}
		}
		for key := range f.results {
			if f.answers[key].SubmissionID == id {
				counts.Results++
			}
		}
		out[id] = counts
	}
	return out, nil
}

func (f *fakeGradingRepo) CountResultsByStudent(_ context.Context, examID uint) (map[uint]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uint]int64)
	for _, result := range f.results {
		if result.ExamID == examID {
			out[result.StudentID]++
		}
	}
	return out, nil
}

func (f *fakeGradingRepo) DeleteBySubmission(_ context.Context, submissionID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, answer := range f.answers {
		if answer.SubmissionID == submissionID {
			delete(f.answers, key)
			delete(f.results, key)
		}
	}
	return nil
}

type fakeStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: make(map[string][]byte)}
}

func (f *fakeStore) Save(_ context.Context, key string, reader io.Reader) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.files[key] = data
	f.mu.Unlock()
	return key, nil
}

func (f *fakeStore) Read(_ context.Context, storageKey string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[storageKey]
	if !ok {
		return nil, errNotFound
	}
	return data, nil
}

func (f *fakeStore) Delete(_ context.Context, storageKey string) error {
	f.mu.Lock()
	delete(f.files, storageKey)
	f.mu.Unlock()
	return nil
}

type fakeQueue struct {
	mu  sync.Mutex
	ids []uint
}

func (f *fakeQueue) Enqueue(submissionID uint) {
	f.mu.Lock()
	f.ids = append(f.ids, submissionID)
	f.mu.Unlock()
}

type fakeExtractor struct {
	result ocr.Result
	err    error
}

func (f *fakeExtractor) Extract(_ context.Context, _ []byte, _ string) (ocr.Result, error) {
	return f.result, f.err
}

type fakeGrader struct {
	mu      sync.Mutex
	calls   []ai.GradingInput
	outcome ai.GradingOutcome
	failFor int
	panicOn string
}

func (f *fakeGrader) Grade(_ context.Context, input ai.GradingInput) (ai.GradingOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, input)
	if f.panicOn != "" && strings.Contains(input.StudentAnswer, f.panicOn) {
		panic("grader blew up")
	}
	if f.failFor != 0 && input.QuestionNumber == f.failFor {
		return ai.GradingOutcome{}, errors.New("model unavailable")
	}
	return f.outcome, nil
}
