package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"asseto/internal/providers/genai"
)

// GeminiOptions configures the Gemini-backed refiner.
type GeminiOptions struct {
	Client     *genai.Client
	Fallback   Refiner
	OnFallback func(reason string, err error)
}

// GeminiRefiner refines copy with the Gemini text model and hands over to its
// fallback when the model is unavailable or answers with nothing.
type GeminiRefiner struct {
	client     *genai.Client
	fallback   Refiner
	onFallback func(reason string, err error)
}

func NewGeminiRefiner(opts GeminiOptions) (*GeminiRefiner, error) {
	if opts.Client == nil {
		return nil, errors.New("prompt: gemini client is required")
	}
	fallback := opts.Fallback
	if fallback == nil {
		fallback = NewStaticRefiner()
	}
	return &GeminiRefiner{client: opts.Client, fallback: fallback, onFallback: opts.OnFallback}, nil
}

func (g *GeminiRefiner) Refine(ctx context.Context, req RefineRequest) string {
	if strings.TrimSpace(req.Text) == "" {
		return ""
	}
	text, err := g.client.GenerateText(ctx, genai.TextRequest{Prompt: buildRefinePrompt(req), Temperature: 0.4})
	if reason, failed := classify(text, err); failed {
		g.notify(reason, err)
		return g.fallback.Refine(ctx, req)
	}
	return cleanModelText(text)
}

func (g *GeminiRefiner) SuggestSectionDetails(ctx context.Context, req SectionRequest) string {
	if strings.TrimSpace(req.SectionName) == "" {
		return ""
	}
	text, err := g.client.GenerateText(ctx, genai.TextRequest{Prompt: buildSectionPrompt(req), Temperature: 0.7})
	if reason, failed := classify(text, err); failed {
		g.notify(reason, err)
		return g.fallback.SuggestSectionDetails(ctx, req)
	}
	return cleanModelText(text)
}

func (g *GeminiRefiner) Provider() string {
	return geminiProviderName
}

func (g *GeminiRefiner) notify(reason string, err error) {
	if g.onFallback != nil {
		g.onFallback(reason, err)
	}
}

// classify maps a model answer onto a fallback reason.
func classify(text string, err error) (string, bool) {
	var apiErr *genai.APIError
	switch {
	case errors.Is(err, genai.ErrNoAPIKey):
		return "missing_api_key", true
	case errors.Is(err, genai.ErrBlocked):
		return "blocked", true
	case errors.As(err, &apiErr):
		return fmt.Sprintf("http_%d", apiErr.Status), true
	case err != nil:
		return "http_request", true
	case strings.TrimSpace(cleanModelText(text)) == "":
		return "empty_response", true
	default:
		return "", false
	}
}

// GeminiStyleExtractor describes reference images with the Gemini text model.
type GeminiStyleExtractor struct {
	client *genai.Client
}

func NewGeminiStyleExtractor(client *genai.Client) (*GeminiStyleExtractor, error) {
	if client == nil {
		return nil, errors.New("prompt: gemini client is required")
	}
	return &GeminiStyleExtractor{client: client}, nil
}

// Analyze sends at most MaxStyleImages images with the instruction. With no
// images it returns "" without calling the model.
func (g *GeminiStyleExtractor) Analyze(ctx context.Context, images []ReferenceImage, instruction string) (string, error) {
	inline := make([]genai.InlineImage, 0, MaxStyleImages)
	for _, img := range images {
		if len(inline) == MaxStyleImages {
			break
		}
		if len(img.Data) == 0 {
			continue
		}
		inline = append(inline, genai.InlineImage{Data: img.Data, MIMEType: coalesce(img.MIMEType, "image/png")})
	}
	if len(inline) == 0 {
		return "", nil
	}
	text, err := g.client.GenerateText(ctx, genai.TextRequest{
		Prompt:      coalesce(instruction, DefaultStyleInstruction),
		Images:      inline,
		Temperature: 0.4,
	})
	if err != nil {
		return "", fmt.Errorf("prompt: analyze style: %w", err)
	}
	return cleanModelText(text), nil
}

var (
	_ Refiner        = (*GeminiRefiner)(nil)
	_ StyleExtractor = (*GeminiStyleExtractor)(nil)
)
