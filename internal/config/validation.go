package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
)

// validSSLModes are the SSL modes accepted by the pgx driver.
var validSSLModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider validation (and provider-specific credentials)
	switch c.Provider {
	case ProviderGemini:
		// GEMINI_API_KEY is read directly by Genkit; we only check presence.
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty", ErrInvalidOllamaHost)
		}
		u, err := url.Parse(c.OllamaHost)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: must be a URL like http://localhost:11434, got %q",
				ErrInvalidOllamaHost, c.OllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q (supported: gemini, ollama)", ErrInvalidProvider, c.Provider)
	}

	// 2. Model configuration
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity)
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	// MaxTokens range: 1 to 2097152 (Gemini 2.5 max context window)
	if c.MaxTokens < 1 || c.MaxTokens > 2097152 {
		return fmt.Errorf("%w: must be between 1 and 2,097,152, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	// 3. RAG configuration
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}
	if c.RetrievalTopK < 1 || c.RetrievalTopK > 20 {
		return fmt.Errorf("%w: retrieval_top_k must be between 1 and 20, got %d",
			ErrInvalidEmbedderModel, c.RetrievalTopK)
	}

	// 4. Chunking configuration
	if c.ChunkSize < 50 || c.ChunkSize > 4096 {
		return fmt.Errorf("%w: chunk_size must be between 50 and 4096 words, got %d",
			ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be non-negative and smaller than chunk_size, got %d",
			ErrInvalidChunking, c.ChunkOverlap)
	}

	// 5. PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q (supported: %v)", ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	// 6. Scraper configuration
	if c.Scraper.Parallelism < 1 || c.Scraper.Parallelism > 16 {
		return fmt.Errorf("%w: parallelism must be between 1 and 16, got %d",
			ErrInvalidScraper, c.Scraper.Parallelism)
	}
	if c.Scraper.DelayMS < 0 {
		return fmt.Errorf("%w: delay_ms cannot be negative, got %d", ErrInvalidScraper, c.Scraper.DelayMS)
	}
	if c.Scraper.TimeoutMS < 1000 {
		return fmt.Errorf("%w: timeout_ms must be at least 1000, got %d", ErrInvalidScraper, c.Scraper.TimeoutMS)
	}
	if c.Scraper.MaxDepth < 1 || c.Scraper.MaxDepth > 10 {
		return fmt.Errorf("%w: max_depth must be between 1 and 10, got %d",
			ErrInvalidScraper, c.Scraper.MaxDepth)
	}

	return nil
}
