package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"net/http"
	"net/url"
	"strings"
	"time"

	"asseto/internal/infra"
)

const (
	defaultBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	defaultImageModel = "gemini-2.5-flash-image"
	defaultTextModel  = "gemini-2.5-flash"
)

var (
	// ErrNoAPIKey is returned by text calls when the client runs without credentials.
	ErrNoAPIKey = errors.New("genai: api key not configured")
	// ErrNoImage is returned when a response carries no inline image data.
	ErrNoImage = errors.New("genai: no image data returned")
	// ErrBlocked is returned when the model refuses the prompt.
	ErrBlocked = errors.New("genai: prompt blocked")
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	ImageModel string
	TextModel  string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client talks to the Gemini generateContent endpoint. Without an API key,
// image generation returns deterministic synthetic PNGs and text calls fail
// with ErrNoAPIKey so callers fall back to their own defaults.
type Client struct {
	apiKey     string
	baseURL    string
	imageModel string
	textModel  string
	httpClient *http.Client
	logger     *infra.Logger
}

// ImageRequest represents the information required to generate one image.
type ImageRequest struct {
	Prompt      string
	AspectRatio string
	RequestID   string
}

// ImageAsset is the normalized image returned by the client.
type ImageAsset struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// InlineImage is an image passed to a multimodal text call.
type InlineImage struct {
	Data     []byte
	MIMEType string
}

// TextRequest is a text generation call, optionally with images.
type TextRequest struct {
	Prompt      string
	Images      []InlineImage
	Temperature float64
}

func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("genai: invalid base url: %w", err)
	}

	c := &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		imageModel: orDefault(opts.ImageModel, defaultImageModel),
		textModel:  orDefault(opts.TextModel, defaultTextModel),
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	if c.logger == nil {
		c.logger = infra.NopLogger()
	}
	return c, nil
}

// ImageModel returns the configured image model identifier.
func (c *Client) ImageModel() string { return c.imageModel }

// TextModel returns the configured text model identifier.
func (c *Client) TextModel() string { return c.textModel }

// Synthetic reports whether the client runs without credentials.
func (c *Client) Synthetic() bool { return c.apiKey == "" }

// GenerateImage produces one image for the prompt.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Synthetic() {
		asset := syntheticImage(req)
		c.logger.Debug().Str("request_id", req.RequestID).Msg("genai: synthetic image")
		return asset, nil
	}

	config := &generationConfig{ResponseModalities: []string{"IMAGE"}}
	if aspect := strings.TrimSpace(req.AspectRatio); aspect != "" {
		config.ImageConfig = &imageConfig{AspectRatio: aspect}
	}
	resp, err := c.generate(ctx, c.imageModel, []part{{Text: req.Prompt}}, config)
	if err != nil {
		return nil, err
	}

	for _, p := range resp.parts() {
		if p.InlineData == nil || p.InlineData.Data == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err != nil {
			c.logger.Debug().Err(err).Str("request_id", req.RequestID).Msg("genai: skip undecodable part")
			continue
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			c.logger.Debug().Err(err).Str("request_id", req.RequestID).Msg("genai: skip unreadable image")
			continue
		}
		c.logger.Debug().
			Str("request_id", req.RequestID).
			Str("model", c.imageModel).
			Int("bytes", len(data)).
			Msg("genai: remote image")
		return &ImageAsset{
			Data:   data,
			Format: orDefault(p.InlineData.MimeType, "image/png"),
			Width:  cfg.Width,
			Height: cfg.Height,
		}, nil
	}
	return nil, ErrNoImage
}

// GenerateText runs a text (optionally multimodal) prompt and returns the
// joined text parts of the first non-empty candidate.
func (c *Client) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.Synthetic() {
		return "", ErrNoAPIKey
	}

	parts := make([]part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		if len(img.Data) > 0 {
			parts = append(parts, inlinePart(img))
		}
	}
	parts = append(parts, part{Text: req.Prompt})

	resp, err := c.generate(ctx, c.textModel, parts, &generationConfig{CandidateCount: 1, Temperature: req.Temperature})
	if err != nil {
		return "", err
	}
	for _, cand := range resp.Candidates {
		if text := strings.TrimSpace(cand.text()); text != "" {
			return text, nil
		}
	}
	return "", errors.New("genai: empty text response")
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
