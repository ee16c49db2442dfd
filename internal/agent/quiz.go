package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MaxQuizQuestions bounds a single quiz generation request.
const MaxQuizQuestions = 20

// quizPromptTemplate asks for multiple choice questions in a fixed,
// parseable format.
const quizPromptTemplate = `Based on the following %s programming content, generate %d multiple choice questions.

Content:
%s

Generate %d questions in this EXACT format:
Q1: [Question text]
A) [Option A]
B) [Option B]
C) [Option C]
D) [Option D]
Correct: [A/B/C/D]

Q2: [Question text]
...

Topic: %s
Generate questions now:`

// QuizQuestion is one multiple choice question.
type QuizQuestion struct {
	Text    string            `json:"question"`
	Options map[string]string `json:"options"`
	Correct string            `json:"correct"`
}

// Quiz is a generated set of questions on a topic.
type Quiz struct {
	Topic     string         `json:"topic"`
	Questions []QuizQuestion `json:"questions"`
	Sources   []string       `json:"sources"`
}

// QuestionResult is the grading outcome for one question.
type QuestionResult struct {
	Number        int    `json:"question_num"`
	Question      string `json:"question"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
}

// GradeReport is the outcome of grading a quiz submission.
type GradeReport struct {
	TotalQuestions int              `json:"total_questions"`
	Correct        int              `json:"correct"`
	Incorrect      int              `json:"incorrect"`
	Score          float64          `json:"score"`
	Results        []QuestionResult `json:"results"`
}

// Quizzer generates and grades multiple choice quizzes from course
// material.
type Quizzer struct {
	g         *genkit.Genkit
	retriever *Retriever
	modelName string
	logger    *slog.Logger
}

// NewQuizzer creates a Quizzer.
func NewQuizzer(g *genkit.Genkit, retriever *Retriever, modelName string, logger *slog.Logger) (*Quizzer, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Quizzer{g: g, retriever: retriever, modelName: modelName, logger: logger}, nil
}

// Generate builds a quiz on a topic from retrieved course material.
func (q *Quizzer) Generate(ctx context.Context, topic string, numQuestions int) (*Quiz, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, ErrEmptyQuery
	}
	if numQuestions < 1 || numQuestions > MaxQuizQuestions {
		return nil, ErrInvalidQuizSize
	}

	results, err := q.retriever.Retrieve(ctx, topic, "", 10)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoContext
	}

	// Context from the five best chunks keeps the prompt focused.
	contextChunks := results
	if len(contextChunks) > 5 {
		contextChunks = contextChunks[:5]
	}
	var contextText strings.Builder
	for i, result := range contextChunks {
		if i > 0 {
			contextText.WriteString("\n\n")
		}
		contextText.WriteString(result.Chunk.Content)
	}

	prompt := fmt.Sprintf(quizPromptTemplate, courseLanguage, numQuestions,
		contextText.String(), numQuestions, topic)

	resp, err := genkit.Generate(ctx, q.g,
		ai.WithModelName(q.modelName),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	questions := parseQuiz(resp.Text())
	if len(questions) == 0 {
		return nil, ErrQuizParse
	}

	q.logger.Debug("generated quiz", "topic", topic,
		"requested", numQuestions, "parsed", len(questions))

	return &Quiz{
		Topic:     topic,
		Questions: questions,
		Sources:   sourceFiles(results, 3),
	}, nil
}

// Grade scores a submission against the quiz key. answers maps
// 1-based question numbers to option letters; answers are
// case-insensitive and missing answers count as incorrect.
func (q *Quizzer) Grade(quiz *Quiz, answers map[int]string) *GradeReport {
	report := &GradeReport{
		TotalQuestions: len(quiz.Questions),
		Results:        make([]QuestionResult, 0, len(quiz.Questions)),
	}

	for i, question := range quiz.Questions {
		num := i + 1
		userAnswer := strings.ToUpper(strings.TrimSpace(answers[num]))
		isCorrect := userAnswer != "" && userAnswer == question.Correct
		if isCorrect {
			report.Correct++
		}
		report.Results = append(report.Results, QuestionResult{
			Number:        num,
			Question:      question.Text,
			UserAnswer:    userAnswer,
			CorrectAnswer: question.Correct,
			IsCorrect:     isCorrect,
		})
	}

	report.Incorrect = report.TotalQuestions - report.Correct
	if report.TotalQuestions > 0 {
		report.Score = float64(report.Correct) / float64(report.TotalQuestions) * 100
	}
	return report
}

// parseQuiz parses model output in the Q/A)B)C)D)/Correct format into
// structured questions. Questions missing an answer key or options are
// dropped.
func parseQuiz(text string) []QuizQuestion {
	var questions []QuizQuestion
	var current *QuizQuestion

	flush := func() {
		if current == nil {
			return
		}
		if current.Text != "" && len(current.Options) > 0 && current.Correct != "" {
			questions = append(questions, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "Q") && strings.Contains(line, ":"):
			flush()
			_, rest, _ := strings.Cut(line, ":")
			current = &QuizQuestion{
				Text:    strings.TrimSpace(rest),
				Options: make(map[string]string),
			}

		case current != nil && len(line) > 2 && line[1] == ')' &&
			line[0] >= 'A' && line[0] <= 'D':
			current.Options[string(line[0])] = strings.TrimSpace(line[2:])

		case current != nil && strings.HasPrefix(line, "Correct:"):
			answer := strings.TrimSpace(strings.TrimPrefix(line, "Correct:"))
			if answer != "" {
				letter := strings.ToUpper(answer[:1])
				if letter >= "A" && letter <= "D" {
					current.Correct = letter
				}
			}
		}
	}
	flush()

	return questions
}
