package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"charm.land/bubbles/v2/textarea"
	"go.uber.org/goleak"

	"github.com/uniassist/uniassist/internal/agent"
)

// goleakOptions returns standard goleak options for all TUI tests.
// Filters out persistent goroutines that are expected to exist:
// - HTTP/2 connection pool goroutines
// - OpenCensus stats worker (global singleton, can't be stopped)
func goleakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*http2clientConnReadLoop).run"),
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	}
}

// newTestModel creates a Model with properly initialized textarea for testing.
func newTestModel() *Model {
	ta := textarea.New()
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	return &Model{
		state:    StateInput,
		input:    ta,
		history:  make([]string, 0),
		styles:   DefaultStyles(),
		keys:     newKeyMap(),
		markdown: newMarkdownRenderer(80),
		ctx:      context.Background(), // Required for stream operations
	}
}

func TestNew_ErrorOnNilFlow(t *testing.T) {
	_, err := New(context.Background(), nil)
	if err == nil {
		t.Error("Expected error for nil flow")
	}
}

func TestNew_ErrorOnNilContext(t *testing.T) {
	// Note: We can't create a real *agent.Flow without full setup,
	// so we're testing that error is returned for nil context
	var flow *agent.Flow
	//lint:ignore SA1012 intentionally testing nil context handling
	_, err := New(nil, flow) //nolint:staticcheck
	if err == nil {
		t.Error("Expected error for nil context")
	}
}

func TestModel_Init(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	cmd := m.Init()
	if cmd == nil {
		t.Error("Init should return a command (blink + spinner tick)")
	}
}

func TestModel_HandleSlashCommands(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	tests := []struct {
		name     string
		cmd      string
		wantExit bool
		wantMsgs int // number of messages added
	}{
		{"help", "/help", false, 1},
		{"clear", "/clear", false, 0}, // clears messages
		{"exit", "/exit", true, 0},
		{"quit", "/quit", true, 0},
		{"unknown", "/unknown", false, 1}, // error message
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel()

			// Pre-populate with a message for /clear test
			m.messages = []Message{{Role: roleUser, Text: "hello"}}

			model, cmd := m.handleSlashCommand(tt.cmd)
			result := model.(*Model)

			if tt.wantExit {
				if cmd == nil {
					t.Error("Expected quit command for exit")
				}
			} else {
				if tt.cmd == "/clear" {
					if len(result.messages) != 0 {
						t.Error("/clear should clear messages")
					}
				} else {
					if len(result.messages) != 1+tt.wantMsgs {
						t.Errorf("Expected %d messages, got %d", 1+tt.wantMsgs, len(result.messages))
					}
				}
			}
		})
	}
}

func TestModel_HistoryNavigation(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.history = []string{"first", "second", "third"}
	m.historyIdx = 3

	tests := []struct {
		delta    int
		expected string
	}{
		{-1, "third"},
		{-1, "second"},
		{-1, "first"},
		{-1, "first"}, // Should stay at first
		{1, "second"},
		{1, "third"},
		{1, ""}, // Past end = empty
		{1, ""}, // Should stay empty
	}

	for i, tt := range tests {
		model, _ := m.navigateHistory(tt.delta)
		m = model.(*Model)
		if m.input.Value() != tt.expected {
			t.Errorf("Step %d: got %q, want %q", i, m.input.Value(), tt.expected)
		}
	}
}

func TestModel_CtrlC_ClearsInput(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.input.SetValue("some input")

	model, _ := m.handleCtrlC()
	result := model.(*Model)

	if result.input.Value() != "" {
		t.Error("First Ctrl+C should clear input")
	}
}

func TestModel_DoubleCtrlC_Exits(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.lastCtrlC = time.Now()

	_, cmd := m.handleCtrlC()

	if cmd == nil {
		t.Error("Double Ctrl+C should return quit command")
	}
}

func TestModel_AddMessage_EnforcesBound(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	for i := 0; i < maxMessages+10; i++ {
		m.addMessage(Message{Role: roleUser, Text: "msg"})
	}
	if len(m.messages) != maxMessages {
		t.Errorf("messages = %d, want %d", len(m.messages), maxMessages)
	}
}

func TestModel_StreamDone_AppendsAnswerAndSources(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.state = StateStreaming
	m.output.WriteString("partial")

	model, _ := m.Update(streamDoneMsg{output: agent.Output{
		Answer:  "A pointer stores a memory address.",
		Sources: []string{"lecture03_pointers.pdf"},
	}})
	result := model.(*Model)

	if result.state != StateInput {
		t.Errorf("state = %v, want StateInput", result.state)
	}
	if len(result.messages) != 2 {
		t.Fatalf("messages = %d, want answer + sources", len(result.messages))
	}
	if result.messages[0].Text != "A pointer stores a memory address." {
		t.Errorf("answer = %q", result.messages[0].Text)
	}
	if !strings.Contains(result.messages[1].Text, "lecture03_pointers.pdf") {
		t.Errorf("sources message = %q", result.messages[1].Text)
	}
	if result.output.Len() != 0 {
		t.Error("streaming buffer should be reset after done")
	}
}

func TestModel_StreamDone_FallsBackToChunks(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.state = StateStreaming
	m.output.WriteString("accumulated answer")

	model, _ := m.Update(streamDoneMsg{output: agent.Output{}})
	result := model.(*Model)

	if len(result.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(result.messages))
	}
	if result.messages[0].Text != "accumulated answer" {
		t.Errorf("answer = %q, want accumulated chunks", result.messages[0].Text)
	}
}

func TestModel_StreamError_ContextCanceled(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.state = StateStreaming

	model, _ := m.Update(streamErrorMsg{err: context.Canceled})
	result := model.(*Model)

	if result.state != StateInput {
		t.Errorf("state = %v, want StateInput", result.state)
	}
	if len(result.messages) != 1 || result.messages[0].Role != roleSystem {
		t.Fatalf("expected one system message, got %+v", result.messages)
	}
	if result.messages[0].Text != "(Canceled)" {
		t.Errorf("message = %q", result.messages[0].Text)
	}
}

func TestMarkdownRenderer_NilSafe(t *testing.T) {
	var r *markdownRenderer
	if got := r.Render("**bold**"); got != "**bold**" {
		t.Errorf("nil renderer should return input, got %q", got)
	}
	if r.UpdateWidth(100) {
		t.Error("nil renderer UpdateWidth should return false")
	}
}
