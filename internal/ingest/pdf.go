package ingest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// questionMarkerRe matches question markers like "Q1.", "Q2)", "Question 3:".
var questionMarkerRe = regexp.MustCompile(`(?i)(Q\d+|Question\s+\d+)[.):]`)

// pastPaperIndicators are phrases that identify a document as an exam paper.
var pastPaperIndicators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Q\d+[.):]`),
	regexp.MustCompile(`(?i)Question\s+\d+`),
	regexp.MustCompile(`(?i)Total\s+Marks`),
	regexp.MustCompile(`(?i)Exam\s+Time`),
	regexp.MustCompile(`(?i)Final\s+Exam`),
	regexp.MustCompile(`(?i)Midterm\s+Exam`),
	regexp.MustCompile(`(?i)Quiz`),
}

// ExtractPDF reads a PDF file and returns its text content page by page.
// If docType is generic and the content looks like an exam paper, the
// document is reclassified as a past paper.
func ExtractPDF(path, docType string) (*Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	numPages := r.NumPage()
	pages := make([]Page, 0, numPages)
	var fullText strings.Builder

	for i := 1; i <= numPages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		pages = append(pages, Page{Number: i, Text: text})
		if fullText.Len() > 0 {
			fullText.WriteString("\n\n")
		}
		fullText.WriteString(text)
	}

	doc := &Document{
		Filename:    filepath.Base(path),
		Path:        path,
		DocType:     docType,
		Pages:       pages,
		FullText:    fullText.String(),
		WordCount:   len(strings.Fields(fullText.String())),
		ProcessedAt: time.Now(),
	}

	if doc.DocType == "" {
		doc.DocType = DocTypeGeneric
	}
	if doc.DocType == DocTypeGeneric && IsPastPaper(doc.FullText) {
		doc.DocType = DocTypePastPaper
	}
	if doc.DocType == DocTypePastPaper {
		doc.Questions = len(questionMarkerRe.FindAllString(doc.FullText, -1))
	}

	return doc, nil
}

// IsPastPaper reports whether the text contains exam-paper indicators.
func IsPastPaper(text string) bool {
	for _, re := range pastPaperIndicators {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
