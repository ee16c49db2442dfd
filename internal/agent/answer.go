package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/uniassist/uniassist/internal/knowledge"
)

// StreamCallback receives partial answer text as it is generated.
type StreamCallback func(ctx context.Context, text string) error

// answerSystemPrompt frames the model as a course teaching assistant
// that answers strictly from retrieved material.
const answerSystemPrompt = `You are a helpful %s (%s) teaching assistant.
Answer the student's question using ONLY the provided context from past papers and course materials.

Instructions:
- Provide a clear, accurate answer based on the context
- If the context contains code examples, explain them
- If you cannot answer from the context, say so
- Keep the answer concise but complete`

// AnswerResult is a generated answer with its supporting sources.
type AnswerResult struct {
	Question    string   `json:"question"`
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	ContextUsed int      `json:"context_used"`
}

// Answerer generates grounded answers from retrieved context.
type Answerer struct {
	g         *genkit.Genkit
	modelName string
	course    string
	logger    *slog.Logger
}

// NewAnswerer creates an Answerer. modelName is the fully qualified
// Genkit model name, e.g. "googleai/gemini-2.5-flash".
func NewAnswerer(g *genkit.Genkit, modelName, course string, logger *slog.Logger) (*Answerer, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{g: g, modelName: modelName, course: course, logger: logger}, nil
}

// Answer generates an answer to the question from the retrieved chunks.
// A non-nil callback streams partial text as it arrives.
func (a *Answerer) Answer(ctx context.Context, question string, results []knowledge.Result, cb StreamCallback) (*AnswerResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuery
	}
	if len(results) == 0 {
		return nil, ErrNoContext
	}

	prompt := fmt.Sprintf("Context:\n%s\nStudent Question: %s", buildContext(results), question)

	opts := []ai.GenerateOption{
		ai.WithModelName(a.modelName),
		ai.WithSystem(fmt.Sprintf(answerSystemPrompt, a.course, courseLanguage)),
		ai.WithPrompt(prompt),
	}
	if cb != nil {
		opts = append(opts, ai.WithStreaming(streamAdapter(cb)))
	}

	resp, err := genkit.Generate(ctx, a.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	answer := resp.Text()
	a.logger.Debug("generated answer", "question_length", len(question),
		"context_chunks", len(results), "answer_length", len(answer))

	return &AnswerResult{
		Question:    question,
		Answer:      answer,
		Sources:     sourceFiles(results, 3),
		ContextUsed: len(results),
	}, nil
}

// courseLanguage is the programming language the course teaches.
const courseLanguage = "C++"

// buildContext formats retrieved chunks as numbered, attributed sources.
func buildContext(results []knowledge.Result) string {
	var sb strings.Builder
	for i, result := range results {
		source := result.Chunk.Metadata["source_file"]
		if source == "" {
			source = "Unknown"
		}
		fmt.Fprintf(&sb, "[Source %d: %s]\n%s\n\n", i+1, source, result.Chunk.Content)
	}
	return sb.String()
}

// sourceFiles returns up to limit distinct source file names, in
// retrieval order.
func sourceFiles(results []knowledge.Result, limit int) []string {
	seen := make(map[string]struct{})
	var sources []string
	for _, result := range results {
		source := result.Chunk.Metadata["source_file"]
		if source == "" {
			continue
		}
		if _, dup := seen[source]; dup {
			continue
		}
		seen[source] = struct{}{}
		sources = append(sources, source)
		if len(sources) == limit {
			break
		}
	}
	return sources
}

// streamAdapter converts a text StreamCallback to the model callback.
func streamAdapter(cb StreamCallback) ai.ModelStreamCallback {
	return func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
		if chunk == nil {
			return nil
		}
		for _, part := range chunk.Content {
			if part.Text == "" {
				continue
			}
			if err := cb(ctx, part.Text); err != nil {
				return err
			}
		}
		return nil
	}
}
