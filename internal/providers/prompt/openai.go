package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	openAITimeout        = 15 * time.Second
	openAISystemPrompt   = "You write short, vivid copy for website imagery. Answer with the requested text only."
)

// openAIModels maps accepted spellings onto the models the refiner sends.
// Entries whose key equals the value are canonical names.
var openAIModels = map[string]string{
	"gpt-3.5-turbo":          "gpt-3.5-turbo",
	"gpt-3.5":                "gpt-3.5-turbo",
	"gpt3.5":                 "gpt-3.5-turbo",
	"gpt-35-turbo":           "gpt-3.5-turbo",
	"gpt-4o-mini":            "gpt-4o-mini",
	"gpt4o-mini":             "gpt-4o-mini",
	"gpt4omini":              "gpt-4o-mini",
	"gpt-4o-mini-2024-07-18": "gpt-4o-mini",
	"gpt-4o":                 "gpt-4o",
	"gpt4o":                  "gpt-4o",
}

// OpenAIOptions configures the OpenAI-backed refiner.
type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
	Fallback     Refiner
	OnFallback   func(reason string, err error)
	OnWarning    func(reason, detail string)
}

// OpenAIRefiner refines copy through the chat completions API.
type OpenAIRefiner struct {
	apiKey       string
	model        string
	endpoint     string
	organization string
	client       *http.Client
	fallback     Refiner
	onFallback   func(reason string, err error)
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

// completionError carries the fallback reason of a failed completion.
type completionError struct {
	reason string
	err    error
}

func (e *completionError) Error() string { return e.reason + ": " + e.err.Error() }
func (e *completionError) Unwrap() error { return e.err }

func failed(reason string, err error) error {
	return &completionError{reason: reason, err: err}
}

func NewOpenAIRefiner(opts OpenAIOptions) (*OpenAIRefiner, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("prompt: openai api key is required")
	}
	requested := strings.TrimSpace(opts.Model)
	model, reason := normalizeOpenAIModel(requested)
	if reason != "" && opts.OnWarning != nil {
		opts.OnWarning("model_"+reason, fmt.Sprintf("requested=%s resolved=%s", coalesce(requested, defaultOpenAIModel), model))
	}

	r := &OpenAIRefiner{
		apiKey:       apiKey,
		model:        model,
		endpoint:     strings.TrimRight(coalesce(opts.BaseURL, defaultOpenAIBaseURL), "/") + "/chat/completions",
		organization: strings.TrimSpace(opts.Organization),
		client:       opts.HTTPClient,
		fallback:     opts.Fallback,
		onFallback:   opts.OnFallback,
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: openAITimeout}
	}
	if r.fallback == nil {
		r.fallback = NewStaticRefiner()
	}
	return r, nil
}

func (o *OpenAIRefiner) Refine(ctx context.Context, req RefineRequest) string {
	if strings.TrimSpace(req.Text) == "" {
		return ""
	}
	if text, ok := o.ask(ctx, buildRefinePrompt(req), 0.4); ok {
		return text
	}
	return o.fallback.Refine(ctx, req)
}

func (o *OpenAIRefiner) SuggestSectionDetails(ctx context.Context, req SectionRequest) string {
	if strings.TrimSpace(req.SectionName) == "" {
		return ""
	}
	if text, ok := o.ask(ctx, buildSectionPrompt(req), 0.7); ok {
		return text
	}
	return o.fallback.SuggestSectionDetails(ctx, req)
}

func (o *OpenAIRefiner) Provider() string {
	return openAIProviderName
}

func (o *OpenAIRefiner) ask(ctx context.Context, prompt string, temperature float64) (string, bool) {
	text, err := o.complete(ctx, prompt, temperature)
	if err == nil {
		return text, true
	}
	var ce *completionError
	if o.onFallback != nil && errors.As(err, &ce) {
		o.onFallback(ce.reason, ce.err)
	}
	return "", false
}

// complete runs one chat completion and returns the cleaned answer.
func (o *OpenAIRefiner) complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	body, err := json.Marshal(openAIChatRequest{
		Model:       o.model,
		Temperature: temperature,
		Messages: []openAIMessage{
			{Role: "system", Content: openAISystemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", failed("encode_request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", failed("build_request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.organization != "" {
		req.Header.Set("OpenAI-Organization", o.organization)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", failed("http_request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", failed(fmt.Sprintf("http_%d", resp.StatusCode),
			fmt.Errorf("openai status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))))
	}
	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", failed("decode_response", err)
	}
	if len(out.Choices) == 0 {
		return "", failed("empty_choices", errors.New("no choices"))
	}
	text := cleanModelText(out.Choices[0].Message.Content)
	if text == "" {
		return "", failed("empty_response", errors.New("empty response"))
	}
	return text, nil
}

// normalizeOpenAIModel resolves a configured model name. The reason is
// "alias" for a known alternative spelling and "defaulted" for an unknown one.
func normalizeOpenAIModel(name string) (string, string) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return defaultOpenAIModel, ""
	}
	key = strings.NewReplacer("_", "-", " ", "-").Replace(key)
	model, ok := openAIModels[key]
	switch {
	case !ok:
		return defaultOpenAIModel, "defaulted"
	case model != key:
		return model, "alias"
	default:
		return model, ""
	}
}

var _ Refiner = (*OpenAIRefiner)(nil)
