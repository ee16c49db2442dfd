package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
)

// Assistant orchestrates the agents behind a single course-assistant
// API: ask questions, generate and grade quizzes, summarize material.
//
// Assistant is safe for concurrent use.
type Assistant struct {
	retriever  *Retriever
	answerer   *Answerer
	quizzer    *Quizzer
	summarizer *Summarizer
	logger     *slog.Logger
}

// Config carries the dependencies for NewAssistant.
type Config struct {
	Genkit    *genkit.Genkit
	Searcher  Searcher
	ModelName string // fully qualified, e.g. "googleai/gemini-2.5-flash"
	Course    string
	TopK      int
	Logger    *slog.Logger
}

// NewAssistant wires up the retriever, answerer, quizzer and summarizer.
func NewAssistant(cfg Config) (*Assistant, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	retriever, err := NewRetriever(cfg.Searcher, cfg.TopK, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating retriever: %w", err)
	}
	answerer, err := NewAnswerer(cfg.Genkit, cfg.ModelName, cfg.Course, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating answerer: %w", err)
	}
	quizzer, err := NewQuizzer(cfg.Genkit, retriever, cfg.ModelName, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating quizzer: %w", err)
	}
	summarizer, err := NewSummarizer(cfg.Genkit, cfg.ModelName, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating summarizer: %w", err)
	}

	return &Assistant{
		retriever:  retriever,
		answerer:   answerer,
		quizzer:    quizzer,
		summarizer: summarizer,
		logger:     cfg.Logger,
	}, nil
}

// Ask answers a course question from retrieved material. sourceType
// optionally restricts retrieval to one source type; empty searches
// everything. A non-nil callback streams partial answer text.
func (a *Assistant) Ask(ctx context.Context, question, sourceType string, cb StreamCallback) (*AnswerResult, error) {
	results, err := a.retriever.Retrieve(ctx, question, sourceType, 0)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoContext
	}
	return a.answerer.Answer(ctx, question, results, cb)
}

// GenerateQuiz builds a multiple choice quiz on a topic.
func (a *Assistant) GenerateQuiz(ctx context.Context, topic string, numQuestions int) (*Quiz, error) {
	return a.quizzer.Generate(ctx, topic, numQuestions)
}

// GradeQuiz scores a quiz submission. Grading is deterministic and
// local; no model call is involved.
func (a *Assistant) GradeQuiz(quiz *Quiz, answers map[int]string) *GradeReport {
	return a.quizzer.Grade(quiz, answers)
}

// Summarize condenses text in the requested style.
func (a *Assistant) Summarize(ctx context.Context, text, style string) (string, error) {
	return a.summarizer.Summarize(ctx, text, style)
}

// Retriever exposes the underlying retriever for Genkit registration.
func (a *Assistant) Retriever() *Retriever {
	return a.retriever
}
