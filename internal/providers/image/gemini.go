package image

import (
	"context"

	"asseto/internal/providers/genai"
)

// GeminiGenerator produces images through the Gemini image model. Failures,
// including rate limits, are returned as they are; retrying is left to the
// user.
type GeminiGenerator struct {
	client *genai.Client
}

func NewGeminiGenerator(client *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (Asset, error) {
	asset, err := g.client.GenerateImage(ctx, genai.ImageRequest{
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		RequestID:   req.RequestID,
	})
	if err != nil {
		return Asset{}, err
	}
	if asset == nil || len(asset.Data) == 0 {
		return Asset{}, ErrEmptyImage
	}
	return Asset{
		Data:     asset.Data,
		MIMEType: asset.Format,
		Width:    asset.Width,
		Height:   asset.Height,
	}, nil
}

var _ Generator = (*GeminiGenerator)(nil)
