package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/uniassist/uniassist/internal/knowledge"
	"github.com/uniassist/uniassist/internal/log"
)

// fakeStore records added chunks in memory.
type fakeStore struct {
	mu      sync.Mutex
	chunks  map[string]knowledge.Chunk
	addErr  error
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{chunks: make(map[string]knowledge.Chunk)}
}

func (s *fakeStore) Add(_ context.Context, chunk knowledge.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addErr != nil {
		return s.addErr
	}
	s.chunks[chunk.ID] = chunk
	return nil
}

func (s *fakeStore) DeleteBySourceFile(_ context.Context, sourceFile string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, sourceFile)
	deleted := 0
	for id, c := range s.chunks {
		if c.Metadata["source_file"] == sourceFile {
			delete(s.chunks, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *fakeStore) bySourceFile(name string) []knowledge.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []knowledge.Chunk
	for _, c := range s.chunks {
		if c.Metadata["source_file"] == name {
			out = append(out, c)
		}
	}
	return out
}

func newTestPipeline(t *testing.T, store Store) *Pipeline {
	t.Helper()
	p, err := NewPipeline(store, NewChunker(512, 50), log.NewNop(), t.TempDir(), "Programming Fundamentals", "CS118")
	if err != nil {
		t.Fatalf("NewPipeline() error: %v", err)
	}
	return p
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestPipelineRunDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "week1.txt", "POINTERS\nA pointer stores a memory address.\n")
	writeFile(t, dir, "week2.md", "RECURSION\nA function that calls itself.\n")
	writeFile(t, dir, "ignore.docx", "not supported")

	store := newFakeStore()
	p := newTestPipeline(t, store)

	result, err := p.Run(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if result.FilesAdded != 2 {
		t.Errorf("FilesAdded = %d, want 2", result.FilesAdded)
	}
	if result.FilesFailed != 0 {
		t.Errorf("FilesFailed = %d, want 0", result.FilesFailed)
	}
	if result.ChunksAdded != len(store.chunks) {
		t.Errorf("ChunksAdded = %d, store has %d", result.ChunksAdded, len(store.chunks))
	}

	chunks := store.bySourceFile("week1.txt")
	if len(chunks) == 0 {
		t.Fatal("no chunks stored for week1.txt")
	}
	meta := chunks[0].Metadata
	if meta["source_type"] != knowledge.SourceTypeNotes {
		t.Errorf("source_type = %q, want notes (text files default to notes)", meta["source_type"])
	}
	if meta["course_code"] != "CS118" {
		t.Errorf("course_code = %q, want CS118", meta["course_code"])
	}
	if meta["doc_type"] != DocTypeNotes {
		t.Errorf("doc_type = %q, want notes", meta["doc_type"])
	}
}

func TestPipelineRunSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "outline.txt", "Course outline for CS118.\nWeek one covers variables.\n")

	store := newFakeStore()
	p := newTestPipeline(t, store)

	result, err := p.Run(context.Background(), path, DocTypeGeneric)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.FilesAdded != 1 {
		t.Errorf("FilesAdded = %d, want 1", result.FilesAdded)
	}
}

func TestPipelineReingestReplacesChunks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "OLD CONTENT\nThe old version of the notes.\n")

	store := newFakeStore()
	p := newTestPipeline(t, store)

	if _, err := p.Run(context.Background(), dir, ""); err != nil {
		t.Fatalf("first Run() error: %v", err)
	}
	before := len(store.bySourceFile("notes.txt"))

	writeFile(t, dir, "notes.txt", "NEW CONTENT\nThe updated version of the notes.\n")
	if _, err := p.Run(context.Background(), dir, ""); err != nil {
		t.Fatalf("second Run() error: %v", err)
	}

	after := store.bySourceFile("notes.txt")
	if len(after) != before {
		t.Errorf("chunk count changed from %d to %d", before, len(after))
	}
	for _, c := range after {
		if c.Content == "OLD CONTENT\nThe old version of the notes." {
			t.Error("stale chunk survived re-ingestion")
		}
	}
}

func TestPipelineMissingPath(t *testing.T) {
	p := newTestPipeline(t, newFakeStore())
	if _, err := p.Run(context.Background(), "/nonexistent/dir", ""); err == nil {
		t.Fatal("Run() succeeded on missing path")
	}
}

func TestPipelineStoreFailureCountsFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "week1.txt", "Some course content here.")

	store := newFakeStore()
	store.addErr = errors.New("database unavailable")
	p := newTestPipeline(t, store)

	result, err := p.Run(context.Background(), dir, "")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.FilesFailed != 1 {
		t.Errorf("FilesFailed = %d, want 1", result.FilesFailed)
	}
	if result.FilesAdded != 0 {
		t.Errorf("FilesAdded = %d, want 0", result.FilesAdded)
	}
}

func TestPipelineLockContention(t *testing.T) {
	dataDir := t.TempDir()
	p, err := NewPipeline(newFakeStore(), NewChunker(512, 50), log.NewNop(), dataDir, "PF", "CS118")
	if err != nil {
		t.Fatalf("NewPipeline() error: %v", err)
	}

	// Hold the lock from outside; Run must give up when its context expires.
	held := flock.New(filepath.Join(dataDir, "ingest.lock"))
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("could not pre-acquire lock: locked=%v err=%v", locked, err)
	}
	defer held.Unlock() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if _, err := p.Run(ctx, dataDir, ""); err == nil {
		t.Fatal("Run() succeeded while lock was held")
	}
}

func TestChunkIDStable(t *testing.T) {
	a := chunkID("file.pdf", "content")
	b := chunkID("file.pdf", "content")
	c := chunkID("other.pdf", "content")

	if a != b {
		t.Error("same inputs produced different IDs")
	}
	if a == c {
		t.Error("different files produced the same ID")
	}
	if len(a) != 16 {
		t.Errorf("ID length = %d, want 16", len(a))
	}
}

func TestIngestPage(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(t, store)

	added, err := p.IngestPage(context.Background(),
		"https://cs.example.edu/syllabus", "Course Syllabus",
		"The course covers pointers, recursion and memory management in depth.")
	if err != nil {
		t.Fatalf("IngestPage() error: %v", err)
	}
	if added != 1 {
		t.Fatalf("chunks added = %d, want 1", added)
	}

	chunks := store.bySourceFile("https://cs.example.edu/syllabus")
	if len(chunks) != 1 {
		t.Fatalf("stored chunks = %d, want 1", len(chunks))
	}
	c := chunks[0]
	if c.Metadata["source_type"] != knowledge.SourceTypeWeb {
		t.Errorf("source_type = %q, want %q", c.Metadata["source_type"], knowledge.SourceTypeWeb)
	}
	if c.Metadata["page_title"] != "Course Syllabus" {
		t.Errorf("page_title = %q", c.Metadata["page_title"])
	}
}

func TestIngestPageReplacesPrevious(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(t, store)
	ctx := context.Background()

	if _, err := p.IngestPage(ctx, "https://cs.example.edu/notes", "", "Old page content about arrays."); err != nil {
		t.Fatalf("first IngestPage() error: %v", err)
	}
	if _, err := p.IngestPage(ctx, "https://cs.example.edu/notes", "", "New page content about vectors."); err != nil {
		t.Fatalf("second IngestPage() error: %v", err)
	}

	chunks := store.bySourceFile("https://cs.example.edu/notes")
	if len(chunks) != 1 {
		t.Fatalf("stored chunks = %d, want 1", len(chunks))
	}
	if got := chunks[0].Content; got != "New page content about vectors." {
		t.Errorf("content = %q, old content not replaced", got)
	}
}

func TestIngestPageEmptyText(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(t, store)

	added, err := p.IngestPage(context.Background(), "https://cs.example.edu/empty", "", "   ")
	if err != nil {
		t.Fatalf("IngestPage() error: %v", err)
	}
	if added != 0 {
		t.Errorf("chunks added = %d, want 0", added)
	}
	if len(store.deleted) != 0 {
		t.Errorf("delete called for empty page")
	}
}
