package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Summary styles.
const (
	SummaryConcise      = "concise"
	SummaryDetailed     = "detailed"
	SummaryBulletPoints = "bullet_points"
)

// maxSummaryInput caps how much text is sent to the model per summary.
const maxSummaryInput = 3000

// Summarizer condenses course material into short summaries.
type Summarizer struct {
	g         *genkit.Genkit
	modelName string
	logger    *slog.Logger
}

// NewSummarizer creates a Summarizer.
func NewSummarizer(g *genkit.Genkit, modelName string, logger *slog.Logger) (*Summarizer, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{g: g, modelName: modelName, logger: logger}, nil
}

// Summarize produces a summary of text in the given style. Input beyond
// the size cap is truncated.
func (s *Summarizer) Summarize(ctx context.Context, text, style string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyQuery
	}

	instruction, err := summaryInstruction(style)
	if err != nil {
		return "", err
	}

	if len(text) > maxSummaryInput {
		text = text[:maxSummaryInput]
	}

	prompt := fmt.Sprintf(`Summarize the following %s programming content.

%s:

Content:
%s

Summary:`, courseLanguage, instruction, text)

	resp, err := genkit.Generate(ctx, s.g,
		ai.WithModelName(s.modelName),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	s.logger.Debug("generated summary", "style", style, "input_length", len(text))
	return resp.Text(), nil
}

// summaryInstruction maps a style to its prompt instruction.
func summaryInstruction(style string) (string, error) {
	switch style {
	case SummaryConcise, "":
		return "Provide a concise 3-4 sentence summary", nil
	case SummaryDetailed:
		return "Provide a detailed paragraph summary", nil
	case SummaryBulletPoints:
		return "Provide a summary in bullet points (5-7 key points)", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSummaryStyle, style)
	}
}
