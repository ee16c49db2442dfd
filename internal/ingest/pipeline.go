package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/uniassist/uniassist/internal/knowledge"
)

// ErrLocked is returned when another ingestion run holds the lock.
var ErrLocked = errors.New("another ingestion is already running")

// lockRetryDelay is how often TryLockContext polls for the file lock.
const lockRetryDelay = 250 * time.Millisecond

// Store is the subset of the knowledge store the pipeline needs.
type Store interface {
	Add(ctx context.Context, chunk knowledge.Chunk) error
	DeleteBySourceFile(ctx context.Context, sourceFile string) (int, error)
}

// Pipeline ingests course documents into the knowledge store: extract,
// chunk, embed, upsert. A file lock in the data directory prevents
// concurrent runs from racing on the same files.
type Pipeline struct {
	store      Store
	chunker    *Chunker
	logger     *slog.Logger
	dataDir    string
	course     string
	courseCode string
}

// Result summarizes one ingestion run.
type Result struct {
	FilesAdded   int
	FilesSkipped int
	FilesFailed  int
	ChunksAdded  int
	Duration     time.Duration
}

// NewPipeline creates a Pipeline. dataDir is where the ingest lock file
// lives; course and courseCode are stamped into chunk metadata.
func NewPipeline(store Store, chunker *Chunker, logger *slog.Logger, dataDir, course, courseCode string) (*Pipeline, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if chunker == nil {
		return nil, errors.New("chunker is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:      store,
		chunker:    chunker,
		logger:     logger,
		dataDir:    dataDir,
		course:     course,
		courseCode: courseCode,
	}, nil
}

// Run ingests a file or directory. docType selects the chunking strategy
// for every file in the run; pass empty to let each file be classified
// by extension and content.
func (p *Pipeline) Run(ctx context.Context, path, docType string) (*Result, error) {
	unlock, err := p.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	start := time.Now()
	result := &Result{}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		p.ingestFile(ctx, path, docType, result)
		result.Duration = time.Since(start)
		return result, nil
	}

	err = filepath.WalkDir(path, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !supportedFile(file) {
			return nil
		}
		p.ingestFile(ctx, file, docType, result)
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("walking %s: %w", path, err)
	}

	result.Duration = time.Since(start)
	p.logger.Info("ingestion complete",
		"added", result.FilesAdded,
		"skipped", result.FilesSkipped,
		"failed", result.FilesFailed,
		"chunks", result.ChunksAdded,
		"duration", result.Duration)
	return result, nil
}

// IngestPage chunks and stores one scraped web page. The page URL
// serves as the source file identifier, so re-scraping a page replaces
// its previous chunks. Returns the number of chunks stored.
func (p *Pipeline) IngestPage(ctx context.Context, pageURL, title, text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}

	doc := &Document{
		Filename:    pageURL,
		DocType:     DocTypeGeneric,
		FullText:    text,
		WordCount:   len(strings.Fields(text)),
		ProcessedAt: time.Now(),
	}

	chunks := p.chunker.Chunk(doc)
	if len(chunks) == 0 {
		return 0, nil
	}

	if _, err := p.store.DeleteBySourceFile(ctx, pageURL); err != nil {
		return 0, fmt.Errorf("clearing previous chunks for %s: %w", pageURL, err)
	}

	added := 0
	for _, chunk := range chunks {
		metadata := p.chunkMetadata(doc, chunk)
		metadata["source_type"] = knowledge.SourceTypeWeb
		if title != "" {
			metadata["page_title"] = title
		}
		kc := knowledge.Chunk{
			ID:       chunkID(pageURL, chunk.Text),
			Content:  chunk.Text,
			Metadata: metadata,
		}
		if err := p.store.Add(ctx, kc); err != nil {
			p.logger.Warn("failed to store chunk", "url", pageURL, "error", err)
			continue
		}
		added++
	}

	p.logger.Info("ingested page", "url", pageURL, "chunks", added)
	return added, nil
}

// acquireLock takes the ingest file lock, waiting until the context
// expires if another run holds it.
func (p *Pipeline) acquireLock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(p.dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	lock := flock.New(filepath.Join(p.dataDir, "ingest.lock"))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquiring ingest lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			p.logger.Warn("failed to release ingest lock", "error", err)
		}
	}, nil
}

// ingestFile extracts, chunks and stores one file, updating the result
// counters. Extraction or chunking failures mark the file failed; the
// run continues with the next file.
func (p *Pipeline) ingestFile(ctx context.Context, path, docType string, result *Result) {
	doc, err := p.extract(path, docType)
	if err != nil {
		p.logger.Warn("extraction failed", "file", path, "error", err)
		result.FilesFailed++
		return
	}

	chunks := p.chunker.Chunk(doc)
	if len(chunks) == 0 {
		p.logger.Debug("no content extracted", "file", path)
		result.FilesSkipped++
		return
	}

	// Replace any chunks from a previous ingestion of this file so
	// re-ingesting an updated document never leaves stale content behind.
	if _, err := p.store.DeleteBySourceFile(ctx, doc.Filename); err != nil {
		p.logger.Warn("failed to clear previous chunks", "file", doc.Filename, "error", err)
		result.FilesFailed++
		return
	}

	added := 0
	for _, chunk := range chunks {
		kc := knowledge.Chunk{
			ID:       chunkID(doc.Filename, chunk.Text),
			Content:  chunk.Text,
			Metadata: p.chunkMetadata(doc, chunk),
		}
		if err := p.store.Add(ctx, kc); err != nil {
			p.logger.Warn("failed to store chunk", "file", doc.Filename, "error", err)
			continue
		}
		added++
	}

	if added == 0 {
		result.FilesFailed++
		return
	}

	p.logger.Info("ingested file", "file", doc.Filename, "doc_type", doc.DocType, "chunks", added)
	result.FilesAdded++
	result.ChunksAdded += added
}

// extract reads a file into a Document. PDFs go through the PDF
// extractor; markdown and plain text are read whole and treated as
// notes unless a type was given.
func (p *Pipeline) extract(path, docType string) (*Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return ExtractPDF(path, docType)
	case ".md", ".txt":
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from the ingest walk
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		text := strings.TrimSpace(string(data))
		if docType == "" || docType == DocTypeGeneric {
			docType = DocTypeNotes
		}
		return &Document{
			Filename:    filepath.Base(path),
			Path:        path,
			DocType:     docType,
			Pages:       []Page{{Number: 1, Text: text}},
			FullText:    text,
			WordCount:   len(strings.Fields(text)),
			ProcessedAt: time.Now(),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
}

// chunkMetadata builds the metadata map stored alongside a chunk.
func (p *Pipeline) chunkMetadata(doc *Document, chunk Chunk) map[string]string {
	metadata := map[string]string{
		"source_type": sourceTypeFor(doc.DocType),
		"source_file": doc.Filename,
		"doc_type":    doc.DocType,
		"chunk_type":  chunk.Type,
		"course":      p.course,
		"course_code": p.courseCode,
	}
	for k, v := range chunk.Extra {
		metadata[k] = v
	}
	return metadata
}

// sourceTypeFor maps a document type to a knowledge source type.
func sourceTypeFor(docType string) string {
	switch docType {
	case DocTypePastPaper:
		return knowledge.SourceTypePastPaper
	case DocTypeNotes:
		return knowledge.SourceTypeNotes
	case DocTypeSlides:
		return knowledge.SourceTypeSlides
	default:
		return knowledge.SourceTypeCourseMaterial
	}
}

// chunkID derives a stable identifier from the source file and chunk
// content, so re-ingesting unchanged content is idempotent.
func chunkID(sourceFile, text string) string {
	h := sha256.New()
	h.Write([]byte(sourceFile))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// supportedFile reports whether the pipeline knows how to ingest a file.
func supportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".md", ".txt":
		return true
	default:
		return false
	}
}
