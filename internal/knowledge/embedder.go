package knowledge

import (
	"google.golang.org/genai"

	"github.com/uniassist/uniassist/internal/config"
)

// EmbedOptions returns the provider-specific embed request options that
// pin the output to VectorDimension.
//
// Gemini models emit 3072-dimensional vectors by default and support
// truncation through output dimensionality. Ollama's nomic-embed-text is
// natively 768-dimensional, so no options are needed there; the dimension
// check in embed() still catches a misconfigured model.
func EmbedOptions(provider string) any {
	switch provider {
	case config.ProviderGemini, config.ProviderGoogleAI:
		dim := int32(VectorDimension)
		return &genai.EmbedContentConfig{OutputDimensionality: &dim}
	default:
		return nil
	}
}
