package knowledge

import "time"

// Source type constants for knowledge chunks. They categorize where a
// chunk came from and drive metadata filters at search time.
const (
	// SourceTypeCourseMaterial represents generic course documents.
	SourceTypeCourseMaterial = "course_material"

	// SourceTypePastPaper represents past exam papers.
	SourceTypePastPaper = "past_paper"

	// SourceTypeNotes represents lecture notes.
	SourceTypeNotes = "notes"

	// SourceTypeSlides represents lecture slides.
	SourceTypeSlides = "slides"

	// SourceTypeWeb represents scraped course web pages.
	SourceTypeWeb = "web"
)

// ValidSourceTypes lists every recognized source type.
var ValidSourceTypes = []string{
	SourceTypeCourseMaterial,
	SourceTypePastPaper,
	SourceTypeNotes,
	SourceTypeSlides,
	SourceTypeWeb,
}

// Chunk is a fragment of course material with optional metadata.
type Chunk struct {
	ID        string            // Unique identifier (content hash)
	Content   string            // Chunk text content
	Metadata  map[string]string // source_type, source_file, doc_type, etc.
	CreatedAt time.Time         // Creation timestamp
}

// Result is a single search result with similarity score.
type Result struct {
	Chunk      Chunk
	Similarity float32 // Cosine similarity score (0-1)
}

// SearchOption configures search behavior using the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK    int
	filter  map[string]string
	timeout time.Duration
}

// WithTopK sets the maximum number of results to return. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		c.topK = k
	}
}

// WithFilter adds a metadata filter to restrict search results.
// Multiple calls add additional filters (AND logic).
// Example: WithFilter("source_type", "past_paper")
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// WithTimeout overrides the default search timeout.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    5,
		timeout: defaultSearchTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
