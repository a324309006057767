package image

import (
	"context"
	"errors"
)

// ErrEmptyImage is returned when a provider answers without usable bytes.
var ErrEmptyImage = errors.New("image: provider returned no image data")

// GenerateRequest describes one image generation call.
type GenerateRequest struct {
	Prompt      string
	AspectRatio string
	RequestID   string
}

// Asset represents a generated image.
type Asset struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// Generator is the contract implemented by all image providers. A call
// produces exactly one image or an error.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (Asset, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (Asset, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (Asset, error) {
	return f(ctx, req)
}
