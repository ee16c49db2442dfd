package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/uniassist/uniassist/internal/agent"
)

// maxRequestBody limits JSON request bodies to 1MB.
const maxRequestBody = 1 << 20

// assistantHandler serves the question, quiz and summary endpoints.
//
// Endpoints:
//   - POST /api/v1/ask           - Synchronous question answering
//   - GET  /api/v1/ask/stream    - Streaming answers (SSE)
//   - POST /api/v1/quiz/generate - Quiz generation
//   - POST /api/v1/quiz/grade    - Quiz grading (local, no model call)
//   - POST /api/v1/summarize     - Text summarization
type assistantHandler struct {
	assistant *agent.Assistant
	flow      *agent.Flow
	logger    *slog.Logger
}

// askRequest is the request body for /api/v1/ask.
type askRequest struct {
	Question   string `json:"question"`
	SourceType string `json:"source_type,omitempty"`
}

func (h *assistantHandler) ask(w http.ResponseWriter, r *http.Request) {
	if h.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant_unavailable", "assistant not configured", h.logger)
		return
	}

	var req askRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	result, err := h.assistant.Ask(r.Context(), req.Question, req.SourceType, nil)
	if err != nil {
		h.writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result, h.logger)
}

// SSE event types for answer streaming.
const (
	eventChunk = "chunk"
	eventDone  = "done"
	eventError = "error"
)

// chunkPayload is the SSE data payload for streaming text chunks.
type chunkPayload struct {
	Text string `json:"text"`
}

// errorPayload is the SSE data payload when an error occurs.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// askStream handles SSE streaming answers. The question arrives as a
// query parameter so browsers can use EventSource directly. Partial
// text is sent as "chunk" events, the full result as a final "done"
// event.
func (h *assistantHandler) askStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	question := r.URL.Query().Get("question")
	if question == "" {
		_ = writeEvent(w, flusher, eventError, errorPayload{Code: "missing_question", Message: "question is required"})
		return
	}
	if h.flow == nil {
		_ = writeEvent(w, flusher, eventError, errorPayload{Code: "assistant_unavailable", Message: "ask flow not configured"})
		return
	}

	ctx := r.Context()
	h.logger.Debug("SSE stream started", "request_id", requestIDFromContext(ctx))

	var (
		finalOutput agent.Output
		streamErr   error
	)

	input := agent.Input{
		Question:   question,
		SourceType: r.URL.Query().Get("source_type"),
	}

	for streamValue, err := range h.flow.Stream(ctx, input) {
		select {
		case <-ctx.Done():
			h.logger.Info("client disconnected during stream")
			return
		default:
		}

		if err != nil {
			streamErr = err
			break
		}

		if streamValue.Done {
			finalOutput = streamValue.Output
			break
		}

		if streamValue.Stream.Text != "" {
			if err := writeEvent(w, flusher, eventChunk, chunkPayload{Text: streamValue.Stream.Text}); err != nil {
				// Write failure usually means the connection closed.
				h.logger.Error("writing chunk", "error", err)
				return
			}
		}
	}

	if streamErr != nil {
		code := "stream_error"
		switch {
		case errors.Is(streamErr, agent.ErrNoContext):
			code = "no_context"
		case errors.Is(streamErr, agent.ErrEmptyQuery):
			code = "missing_question"
		case errors.Is(streamErr, agent.ErrGenerationFailed):
			code = "generation_failed"
		}
		_ = writeEvent(w, flusher, eventError, errorPayload{Code: code, Message: streamErr.Error()})
		return
	}

	_ = writeEvent(w, flusher, eventDone, finalOutput)
}

// quizGenerateRequest is the request body for /api/v1/quiz/generate.
type quizGenerateRequest struct {
	Topic        string `json:"topic"`
	NumQuestions int    `json:"num_questions"`
}

func (h *assistantHandler) quizGenerate(w http.ResponseWriter, r *http.Request) {
	if h.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant_unavailable", "assistant not configured", h.logger)
		return
	}

	var req quizGenerateRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if req.NumQuestions == 0 {
		req.NumQuestions = 5
	}

	quiz, err := h.assistant.GenerateQuiz(r.Context(), req.Topic, req.NumQuestions)
	if err != nil {
		h.writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz, h.logger)
}

// quizGradeRequest is the request body for /api/v1/quiz/grade.
// Answers map 1-based question numbers to option letters.
type quizGradeRequest struct {
	Quiz    agent.Quiz     `json:"quiz"`
	Answers map[int]string `json:"answers"`
}

func (h *assistantHandler) quizGrade(w http.ResponseWriter, r *http.Request) {
	if h.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant_unavailable", "assistant not configured", h.logger)
		return
	}

	var req quizGradeRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if len(req.Quiz.Questions) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "quiz has no questions", h.logger)
		return
	}

	report := h.assistant.GradeQuiz(&req.Quiz, req.Answers)
	writeJSON(w, http.StatusOK, report, h.logger)
}

// summarizeRequest is the request body for /api/v1/summarize.
type summarizeRequest struct {
	Text  string `json:"text"`
	Style string `json:"style,omitempty"`
}

// summarizeResponse is the response body for /api/v1/summarize.
type summarizeResponse struct {
	Summary string `json:"summary"`
	Style   string `json:"style"`
}

func (h *assistantHandler) summarize(w http.ResponseWriter, r *http.Request) {
	if h.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, "assistant_unavailable", "assistant not configured", h.logger)
		return
	}

	var req summarizeRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if req.Style == "" {
		req.Style = agent.SummaryConcise
	}

	summary, err := h.assistant.Summarize(r.Context(), req.Text, req.Style)
	if err != nil {
		h.writeAgentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summarizeResponse{Summary: summary, Style: req.Style}, h.logger)
}

// writeAgentError maps agent errors to HTTP status codes.
func (h *assistantHandler) writeAgentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agent.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, "missing_input", err.Error(), h.logger)
	case errors.Is(err, agent.ErrInvalidQuizSize):
		writeError(w, http.StatusBadRequest, "invalid_quiz_size", err.Error(), h.logger)
	case errors.Is(err, agent.ErrInvalidSummaryStyle):
		writeError(w, http.StatusBadRequest, "invalid_style", err.Error(), h.logger)
	case errors.Is(err, agent.ErrNoContext):
		writeError(w, http.StatusNotFound, "no_context", "no relevant course material found", h.logger)
	case errors.Is(err, agent.ErrQuizParse):
		writeError(w, http.StatusBadGateway, "quiz_parse_failed", err.Error(), h.logger)
	case errors.Is(err, agent.ErrGenerationFailed):
		writeError(w, http.StatusBadGateway, "generation_failed", err.Error(), h.logger)
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
	}
}

// decodeJSON decodes a size-limited JSON request body. On failure it
// writes a 400 response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, logger *slog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", logger)
		return false
	}
	return true
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
