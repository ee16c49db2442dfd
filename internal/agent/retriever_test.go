package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/uniassist/uniassist/internal/knowledge"
	"github.com/uniassist/uniassist/internal/log"
)

// stubSearcher is a canned-results Searcher for agent tests.
type stubSearcher struct {
	results  []knowledge.Result
	err      error
	lastOpts []knowledge.SearchOption
	calls    int
}

func (s *stubSearcher) Search(_ context.Context, _ string, opts ...knowledge.SearchOption) ([]knowledge.Result, error) {
	s.calls++
	s.lastOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func testResults() []knowledge.Result {
	return []knowledge.Result{
		{
			Chunk: knowledge.Chunk{
				ID:      "c1",
				Content: "A pointer stores the memory address of another variable.",
				Metadata: map[string]string{
					"source_file": "lecture03_pointers.pdf",
					"source_type": "course_material",
				},
			},
			Similarity: 0.91,
		},
		{
			Chunk: knowledge.Chunk{
				ID:      "c2",
				Content: "Use delete to release memory allocated with new.",
				Metadata: map[string]string{
					"source_file": "lecture04_memory.pdf",
					"source_type": "course_material",
				},
			},
			Similarity: 0.84,
		},
		{
			Chunk: knowledge.Chunk{
				ID:      "c3",
				Content: "Q1. Explain the difference between stack and heap allocation.",
				Metadata: map[string]string{
					"source_file": "final_2023.pdf",
					"source_type": "past_paper",
				},
			},
			Similarity: 0.77,
		},
	}
}

func TestNewRetriever(t *testing.T) {
	if _, err := NewRetriever(nil, 5, log.NewNop()); err == nil {
		t.Error("expected error for nil searcher")
	}

	r, err := NewRetriever(&stubSearcher{}, 0, log.NewNop())
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	if r.topK != 5 {
		t.Errorf("default topK = %d, want 5", r.topK)
	}
}

func TestRetrieve(t *testing.T) {
	searcher := &stubSearcher{results: testResults()}
	r, err := NewRetriever(searcher, 5, log.NewNop())
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	results, err := r.Retrieve(context.Background(), "how do pointers work", "", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("results = %d, want 3", len(results))
	}
	if searcher.calls != 1 {
		t.Errorf("search calls = %d, want 1", searcher.calls)
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	r, err := NewRetriever(&stubSearcher{}, 5, log.NewNop())
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	if _, err := r.Retrieve(context.Background(), "   ", "", 0); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("err = %v, want ErrEmptyQuery", err)
	}
}

func TestRetrieveSourceTypeFilter(t *testing.T) {
	searcher := &stubSearcher{results: testResults()}
	r, err := NewRetriever(searcher, 5, log.NewNop())
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	if _, err := r.Retrieve(context.Background(), "stack vs heap", knowledge.SourceTypePastPaper, 3); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	// topK option plus the source type filter.
	if len(searcher.lastOpts) != 2 {
		t.Errorf("search options = %d, want 2", len(searcher.lastOpts))
	}
}

func TestRetrieveSearchError(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("connection refused")}
	r, err := NewRetriever(searcher, 5, log.NewNop())
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	if _, err := r.Retrieve(context.Background(), "pointers", "", 0); err == nil {
		t.Error("expected error from failing searcher")
	}
}
