package agent

import "errors"

// Sentinel errors returned by the agents. HTTP handlers and the CLI map
// these onto status codes and exit messages with errors.Is.
var (
	// ErrEmptyQuery is returned when a question, topic or text is blank.
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrNoContext is returned when retrieval finds nothing relevant.
	ErrNoContext = errors.New("no relevant course material found")

	// ErrGenerationFailed wraps model call failures.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrQuizParse is returned when the model output contains no
	// parseable questions.
	ErrQuizParse = errors.New("could not parse quiz from model output")

	// ErrInvalidQuizSize is returned for out-of-range question counts.
	ErrInvalidQuizSize = errors.New("question count must be between 1 and 20")

	// ErrInvalidSummaryStyle is returned for unknown summary styles.
	ErrInvalidSummaryStyle = errors.New("unknown summary style")
)
