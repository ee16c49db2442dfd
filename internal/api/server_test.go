package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/uniassist/uniassist/internal/agent"
	"github.com/uniassist/uniassist/internal/ingest"
	"github.com/uniassist/uniassist/internal/knowledge"
	"github.com/uniassist/uniassist/internal/log"
	"github.com/uniassist/uniassist/internal/testutil"
)

// stubSearcher returns canned knowledge results.
type stubSearcher struct {
	results []knowledge.Result
}

func (s *stubSearcher) Search(_ context.Context, _ string, _ ...knowledge.SearchOption) ([]knowledge.Result, error) {
	return s.results, nil
}

// fakePipeline records Run calls and returns a canned result.
type fakePipeline struct {
	result  *ingest.Result
	err     error
	lastRun string
}

func (p *fakePipeline) Run(_ context.Context, path, _ string) (*ingest.Result, error) {
	p.lastRun = path
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

// fakeCounter returns canned chunk counts.
type fakeCounter struct {
	total  int
	byType map[string]int
	err    error
}

func (c *fakeCounter) Count(_ context.Context, filter map[string]string) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	if filter == nil {
		return c.total, nil
	}
	return c.byType[filter["source_type"]], nil
}

func searchResults() []knowledge.Result {
	return []knowledge.Result{
		{
			Chunk: knowledge.Chunk{
				ID:      "c1",
				Content: "A pointer stores a memory address.",
				Metadata: map[string]string{
					"source_file": "lecture03.pdf",
					"source_type": "course_material",
				},
			},
			Similarity: 0.9,
		},
	}
}

func newTestAssistant(t *testing.T, g *genkit.Genkit) *agent.Assistant {
	t.Helper()
	assistant, err := agent.NewAssistant(agent.Config{
		Genkit:    g,
		Searcher:  &stubSearcher{results: searchResults()},
		ModelName: "mock/test-model",
		Course:    "Programming Fundamentals",
		TopK:      5,
		Logger:    log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewAssistant: %v", err)
	}
	return assistant
}

func newTestServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = 1000
	}
	return NewServer(cfg)
}

func postJSON(t *testing.T, srv *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	r.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(w, r)
	return w
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("GET /healthz status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestReadyWithoutPool(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /readyz status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestAskWithoutAssistant(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})

	w := postJSON(t, srv, "/api/v1/ask", askRequest{Question: "what is a pointer"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestAsk(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)
	testutil.NewMockLLM("Pointers store memory addresses.").RegisterModel(g)

	srv := newTestServer(t, ServerConfig{Assistant: newTestAssistant(t, g)})

	w := postJSON(t, srv, "/api/v1/ask", askRequest{Question: "What is a pointer?"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var result agent.AnswerResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if result.Answer != "Pointers store memory addresses." {
		t.Errorf("answer = %q", result.Answer)
	}
	if result.ContextUsed != 1 {
		t.Errorf("context_used = %d, want 1", result.ContextUsed)
	}
}

func TestAskInvalidBody(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)
	testutil.NewMockLLM("unused").RegisterModel(g)

	srv := newTestServer(t, ServerConfig{Assistant: newTestAssistant(t, g)})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader("{not json"))
	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)
	testutil.NewMockLLM("unused").RegisterModel(g)

	srv := newTestServer(t, ServerConfig{Assistant: newTestAssistant(t, g)})

	w := postJSON(t, srv, "/api/v1/ask", askRequest{Question: "  "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAskStream(t *testing.T) {
	agent.ResetFlowForTesting()
	t.Cleanup(agent.ResetFlowForTesting)

	ctx := context.Background()
	g := genkit.Init(ctx)
	testutil.NewMockLLM("streamed answer").RegisterModel(g)

	assistant := newTestAssistant(t, g)
	flow := agent.NewFlow(g, assistant)
	srv := newTestServer(t, ServerConfig{Assistant: assistant, Flow: flow})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/ask/stream?question=What+is+a+pointer%3F", nil)
	srv.Handler().ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	body := w.Body.String()
	if !strings.Contains(body, "event: chunk") {
		t.Errorf("missing chunk event:\n%s", body)
	}
	if !strings.Contains(body, "event: done") {
		t.Errorf("missing done event:\n%s", body)
	}
	if !strings.Contains(body, "streamed answer") {
		t.Errorf("missing answer text:\n%s", body)
	}
}

func TestAskStreamWithoutFlow(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/ask/stream?question=anything", nil)
	srv.Handler().ServeHTTP(w, r)

	if !strings.Contains(w.Body.String(), "event: error") {
		t.Errorf("missing error event:\n%s", w.Body.String())
	}
}

func TestAskStreamMissingQuestion(t *testing.T) {
	srv := newTestServer(t, ServerConfig{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/ask/stream", nil)
	srv.Handler().ServeHTTP(w, r)

	if !strings.Contains(w.Body.String(), "missing_question") {
		t.Errorf("missing missing_question error:\n%s", w.Body.String())
	}
}

func TestQuizGenerate(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)
	testutil.NewMockLLM(`Q1: What does new do?
A) Allocates heap memory
B) Frees memory
C) Declares a constant
D) Opens a file
Correct: A`).RegisterModel(g)

	srv := newTestServer(t, ServerConfig{Assistant: newTestAssistant(t, g)})

	w := postJSON(t, srv, "/api/v1/quiz/generate", quizGenerateRequest{Topic: "memory", NumQuestions: 1})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var quiz agent.Quiz
	if err := json.Unmarshal(w.Body.Bytes(), &quiz); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(quiz.Questions) != 1 {
		t.Errorf("questions = %d, want 1", len(quiz.Questions))
	}
}

func TestQuizGrade(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)
	testutil.NewMockLLM("unused").RegisterModel(g)

	srv := newTestServer(t, ServerConfig{Assistant: newTestAssistant(t, g)})

	req := quizGradeRequest{
		Quiz: agent.Quiz{
			Questions: []agent.QuizQuestion{
				{Text: "q1", Options: map[string]string{"A": "a"}, Correct: "A"},
				{Text: "q2", Options: map[string]string{"B": "b"}, Correct: "B"},
			},
		},
		Answers: map[int]string{1: "A", 2: "D"},
	}
	w := postJSON(t, srv, "/api/v1/quiz/grade", req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var report agent.GradeReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if report.Correct != 1 || report.Score != 50 {
		t.Errorf("correct=%d score=%v, want 1 and 50", report.Correct, report.Score)
	}
}

func TestQuizGradeEmptyQuiz(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)
	testutil.NewMockLLM("unused").RegisterModel(g)

	srv := newTestServer(t, ServerConfig{Assistant: newTestAssistant(t, g)})

	w := postJSON(t, srv, "/api/v1/quiz/grade", quizGradeRequest{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)
	testutil.NewMockLLM("A short summary.").RegisterModel(g)

	srv := newTestServer(t, ServerConfig{Assistant: newTestAssistant(t, g)})

	w := postJSON(t, srv, "/api/v1/summarize", summarizeRequest{Text: "long lecture text"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp summarizeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Summary != "A short summary." {
		t.Errorf("summary = %q", resp.Summary)
	}
	if resp.Style != agent.SummaryConcise {
		t.Errorf("style = %q, want %q", resp.Style, agent.SummaryConcise)
	}
}

func TestSummarizeInvalidStyle(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)
	testutil.NewMockLLM("unused").RegisterModel(g)

	srv := newTestServer(t, ServerConfig{Assistant: newTestAssistant(t, g)})

	w := postJSON(t, srv, "/api/v1/summarize", summarizeRequest{Text: "text", Style: "interpretive_dance"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestUpload(t *testing.T) {
	pipeline := &fakePipeline{result: &ingest.Result{FilesAdded: 1, ChunksAdded: 7}}
	srv := newTestServer(t, ServerConfig{Pipeline: pipeline, UploadDir: t.TempDir()})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte("Pointers hold addresses.")); err != nil {
		t.Fatalf("writing part: %v", err)
	}
	if err := mw.WriteField("doc_type", "notes"); err != nil {
		t.Fatalf("writing field: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp uploadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Filename != "notes.txt" {
		t.Errorf("filename = %q", resp.Filename)
	}
	if resp.ChunksAdded != 7 {
		t.Errorf("chunks_added = %d, want 7", resp.ChunksAdded)
	}
	if pipeline.lastRun == "" {
		t.Error("pipeline was not invoked")
	}
}

func TestUploadUnsupportedExtension(t *testing.T) {
	srv := newTestServer(t, ServerConfig{Pipeline: &fakePipeline{}, UploadDir: t.TempDir()})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "malware.exe")
	_, _ = part.Write([]byte("nope"))
	_ = mw.Close()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestUploadWhileLocked(t *testing.T) {
	pipeline := &fakePipeline{err: ingest.ErrLocked}
	srv := newTestServer(t, ServerConfig{Pipeline: pipeline, UploadDir: t.TempDir()})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "notes.md")
	_, _ = part.Write([]byte("# Notes"))
	_ = mw.Close()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestStats(t *testing.T) {
	counter := &fakeCounter{
		total: 42,
		byType: map[string]int{
			"course_material": 20,
			"past_paper":      12,
			"notes":           10,
		},
	}
	srv := newTestServer(t, ServerConfig{Counter: counter})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp statsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.TotalChunks != 42 {
		t.Errorf("total_chunks = %d, want 42", resp.TotalChunks)
	}
	if resp.BySourceType["past_paper"] != 12 {
		t.Errorf("past_paper count = %d, want 12", resp.BySourceType["past_paper"])
	}
}

func TestStatsStoreError(t *testing.T) {
	srv := newTestServer(t, ServerConfig{Counter: &fakeCounter{err: errors.New("db down")}})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
