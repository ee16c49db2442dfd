package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

// questionStartRe matches the start of an exam question, e.g. "Q1." or
// "Question 12:".
var questionStartRe = regexp.MustCompile(`(?i)(Q\d+[.):]|Question\s+\d+[.):])`)

var headingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z\s]{3,}$`), // ALL CAPS line
	regexp.MustCompile(`^\d+\.`),        // 1. 2. 3.
	regexp.MustCompile(`^Chapter\s+\d+`),
	regexp.MustCompile(`^Section\s+\d+`),
	regexp.MustCompile(`^[IVX]+\.`), // I. II. III.
}

// Chunker splits documents into retrieval-sized chunks. The strategy
// depends on the document type: past papers chunk per question, notes
// per section heading, slides per page, everything else by sliding
// window over words.
type Chunker struct {
	ChunkSize    int // target chunk size in words
	ChunkOverlap int // overlapping words between consecutive generic chunks
}

// NewChunker creates a Chunker. Size and overlap are validated by the
// config layer; overlap must be smaller than size.
func NewChunker(size, overlap int) *Chunker {
	return &Chunker{ChunkSize: size, ChunkOverlap: overlap}
}

// Chunk splits a document using the strategy for its type.
func (c *Chunker) Chunk(doc *Document) []Chunk {
	switch doc.DocType {
	case DocTypePastPaper:
		return c.chunkPastPaper(doc)
	case DocTypeNotes:
		return c.chunkNotes(doc)
	case DocTypeSlides:
		return c.chunkSlides(doc)
	default:
		return c.chunkGeneric(doc.FullText)
	}
}

// chunkPastPaper splits at question markers so each chunk holds one full
// question. Papers without recognizable questions fall back to generic
// chunking. Text before the first question (cover page, instructions)
// is dropped.
func (c *Chunker) chunkPastPaper(doc *Document) []Chunk {
	markers := questionStartRe.FindAllStringIndex(doc.FullText, -1)
	if len(markers) < 2 {
		return c.chunkGeneric(doc.FullText)
	}

	var chunks []Chunk
	for i, m := range markers {
		end := len(doc.FullText)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		text := strings.TrimSpace(doc.FullText[m[0]:end])
		if text == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Text: text,
			Type: "question",
			Extra: map[string]string{
				"question_id": strings.TrimSpace(doc.FullText[m[0]:m[1]]),
			},
		})
	}
	return chunks
}

// chunkNotes splits at section headings. Oversized sections are flushed
// early so no chunk grows far beyond the configured size.
func (c *Chunker) chunkNotes(doc *Document) []Chunk {
	var chunks []Chunk
	var section strings.Builder
	heading := "Introduction"

	flush := func() {
		text := strings.TrimSpace(section.String())
		if text != "" {
			chunks = append(chunks, Chunk{
				Text:  text,
				Type:  "section",
				Extra: map[string]string{"section_heading": heading},
			})
		}
		section.Reset()
	}

	for _, line := range strings.Split(doc.FullText, "\n") {
		stripped := strings.TrimSpace(line)
		if isHeading(stripped) {
			flush()
			heading = stripped
			section.WriteString(stripped)
			section.WriteString("\n")
			continue
		}
		section.WriteString(line)
		section.WriteString("\n")

		if len(strings.Fields(section.String())) > c.ChunkSize*3/2 {
			flush()
		}
	}
	flush()

	if len(chunks) == 0 {
		return c.chunkGeneric(doc.FullText)
	}
	return chunks
}

// chunkSlides emits one chunk per non-empty page.
func (c *Chunker) chunkSlides(doc *Document) []Chunk {
	var chunks []Chunk
	for _, page := range doc.Pages {
		text := strings.TrimSpace(page.Text)
		if text == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Text:  text,
			Type:  "slide",
			Extra: map[string]string{"page_number": strconv.Itoa(page.Number)},
		})
	}
	return chunks
}

// chunkGeneric slides a fixed-size window over words with overlap.
func (c *Chunker) chunkGeneric(text string) []Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []Chunk
	for start, id := 0, 0; start < len(words); id++ {
		end := min(start+c.ChunkSize, len(words))
		chunks = append(chunks, Chunk{
			Text:  strings.Join(words[start:end], " "),
			Type:  "generic",
			Extra: map[string]string{"chunk_id": strconv.Itoa(id)},
		})
		if end == len(words) {
			break
		}
		start = end - c.ChunkOverlap
	}
	return chunks
}

// isHeading reports whether a line looks like a section heading.
func isHeading(line string) bool {
	if len(line) < 3 {
		return false
	}
	for _, re := range headingPatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
