package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
)

// Input defines the request payload for the ask flow.
type Input struct {
	Question   string `json:"question"`
	SourceType string `json:"source_type,omitempty"`
}

// Output defines the response payload from the ask flow.
type Output struct {
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	ContextUsed int      `json:"context_used"`
}

// StreamChunk is the streaming output type for the ask flow.
// Each chunk contains partial answer text.
type StreamChunk struct {
	Text string `json:"text"`
}

// FlowName is the registered name of the ask flow in Genkit.
const FlowName = "uniassist/ask"

// Flow is the type alias for the ask flow.
// Exported for use in the api package with genkit.Handler().
type Flow = core.Flow[Input, Output, StreamChunk]

// Package-level singleton for the flow to prevent panic on
// re-registration. sync.Once ensures genkit.DefineStreamingFlow is
// called only once.
var (
	flowOnce sync.Once
	flow     *Flow
)

// NewFlow returns the ask flow singleton, initializing it on first
// call. Subsequent calls return the existing flow (parameters are
// ignored). This is safe because genkit.DefineStreamingFlow panics on
// re-registration.
func NewFlow(g *genkit.Genkit, assistant *Assistant) *Flow {
	flowOnce.Do(func() {
		flow = assistant.DefineFlow(g)
	})
	return flow
}

// ResetFlowForTesting resets the flow singleton so tests can
// initialize with different configurations.
// WARNING: Only use in tests. Not safe for concurrent use.
func ResetFlowForTesting() {
	flowOnce = sync.Once{}
	flow = nil
}

// DefineFlow defines the Genkit streaming flow for the assistant.
// Supports both streaming (via callback) and non-streaming modes.
//
// Use NewFlow() instead of calling DefineFlow() directly; DefineFlow
// registers a global flow and calling it twice panics.
func (a *Assistant) DefineFlow(g *genkit.Genkit) *Flow {
	return genkit.DefineStreamingFlow(g, FlowName,
		func(ctx context.Context, input Input, streamCb func(context.Context, StreamChunk) error) (Output, error) {
			// When streamCb is nil (e.g. called via Run() instead of
			// Stream()), the assistant operates in non-streaming mode.
			var cb StreamCallback
			if streamCb != nil {
				cb = func(ctx context.Context, text string) error {
					return streamCb(ctx, StreamChunk{Text: text})
				}
			}

			result, err := a.Ask(ctx, input.Question, input.SourceType, cb)
			if err != nil {
				return Output{}, fmt.Errorf("answering question: %w", err)
			}

			return Output{
				Answer:      result.Answer,
				Sources:     result.Sources,
				ContextUsed: result.ContextUsed,
			}, nil
		},
	)
}
