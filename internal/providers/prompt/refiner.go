package prompt

import (
	"context"
)

const (
	staticProviderName = "static"
	geminiProviderName = "gemini"
	openAIProviderName = "openai"
)

// RefineRequest asks for a polished project description.
type RefineRequest struct {
	Text   string
	Locale string
}

// SectionRequest asks for a one-sentence visual description of a section.
type SectionRequest struct {
	SectionName    string
	ProjectContext string
	Locale         string
}

// Refiner rewrites and suggests project copy. Implementations never fail:
// Refine returns the input unchanged when it cannot do better, and
// SuggestSectionDetails returns an empty string.
type Refiner interface {
	Refine(ctx context.Context, req RefineRequest) string
	SuggestSectionDetails(ctx context.Context, req SectionRequest) string
	Provider() string
}

// ReferenceImage is one style reference sent to the style extractor.
type ReferenceImage struct {
	Data     []byte
	MIMEType string
}

// StyleExtractor describes the shared visual style of reference images.
type StyleExtractor interface {
	Analyze(ctx context.Context, images []ReferenceImage, instruction string) (string, error)
}

// MaxStyleImages caps how many references a style analysis sends.
const MaxStyleImages = 3

// DefaultStyleInstruction asks for style, not subject matter.
const DefaultStyleInstruction = "Analyze the visual style of these reference images. Describe the common lighting, color palette, texture, composition, and artistic technique in 2-3 concise sentences so another AI can replicate this specific style. Do not describe the subject matter, only the style."
