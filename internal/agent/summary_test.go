package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/uniassist/uniassist/internal/log"
	"github.com/uniassist/uniassist/internal/testutil"
)

func TestSummaryInstruction(t *testing.T) {
	tests := []struct {
		style   string
		want    string
		wantErr bool
	}{
		{style: SummaryConcise, want: "concise"},
		{style: "", want: "concise"},
		{style: SummaryDetailed, want: "detailed"},
		{style: SummaryBulletPoints, want: "bullet points"},
		{style: "haiku", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("style "+tt.style, func(t *testing.T) {
			got, err := summaryInstruction(tt.style)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSummaryStyle) {
					t.Fatalf("err = %v, want ErrInvalidSummaryStyle", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("summaryInstruction: %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("instruction = %q, want substring %q", got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)

	mock := testutil.NewMockLLM("Pointers hold addresses; delete frees heap memory.")
	mock.RegisterModel(g)

	summarizer, err := NewSummarizer(g, "mock/test-model", log.NewNop())
	if err != nil {
		t.Fatalf("NewSummarizer: %v", err)
	}

	got, err := summarizer.Summarize(ctx, "Long lecture text about pointers and memory.", SummaryConcise)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "Pointers hold addresses; delete frees heap memory." {
		t.Errorf("summary = %q", got)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(calls))
	}
	if !strings.Contains(calls[0].UserMessage, "concise 3-4 sentence summary") {
		t.Errorf("prompt missing style instruction:\n%s", calls[0].UserMessage)
	}
}

func TestSummarizeTruncatesInput(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)

	mock := testutil.NewMockLLM("short summary")
	mock.RegisterModel(g)

	summarizer, err := NewSummarizer(g, "mock/test-model", log.NewNop())
	if err != nil {
		t.Fatalf("NewSummarizer: %v", err)
	}

	long := strings.Repeat("word ", 2000)
	if _, err := summarizer.Summarize(ctx, long, SummaryDetailed); err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(calls))
	}
	if len(calls[0].UserMessage) > maxSummaryInput+500 {
		t.Errorf("prompt length = %d, input not truncated", len(calls[0].UserMessage))
	}
}

func TestSummarizeValidation(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)

	summarizer, err := NewSummarizer(g, "mock/test-model", log.NewNop())
	if err != nil {
		t.Fatalf("NewSummarizer: %v", err)
	}

	if _, err := summarizer.Summarize(ctx, "  ", SummaryConcise); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("blank text: err = %v, want ErrEmptyQuery", err)
	}
	if _, err := summarizer.Summarize(ctx, "text", "limerick"); !errors.Is(err, ErrInvalidSummaryStyle) {
		t.Errorf("bad style: err = %v, want ErrInvalidSummaryStyle", err)
	}
}
