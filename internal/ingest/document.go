// Package ingest turns course documents (PDFs, notes, text files) into
// embedded chunks in the knowledge store.
package ingest

import (
	"time"
)

// Document types drive chunking strategy selection.
const (
	DocTypePastPaper = "past_paper"
	DocTypeNotes     = "notes"
	DocTypeSlides    = "slides"
	DocTypeGeneric   = "generic"
)

// Document is an extracted course document before chunking.
type Document struct {
	Filename    string
	Path        string
	DocType     string
	Pages       []Page
	FullText    string
	WordCount   int
	Questions   int // question markers detected, past papers only
	ProcessedAt time.Time
}

// Page is one page of an extracted document.
type Page struct {
	Number int
	Text   string
}

// Chunk is one fragment produced by the chunker. Extra holds
// strategy-specific metadata such as question_id or section_heading.
type Chunk struct {
	Text  string
	Type  string // question, section, slide or generic
	Extra map[string]string
}
