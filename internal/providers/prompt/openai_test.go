package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func openAIResponse(status int, content string) *http.Response {
	body := `{"choices":[]}`
	if content != "" {
		raw, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
		body = string(raw)
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: http.Header{}}
}

func TestOpenAIRefinerRefine(t *testing.T) {
	var auth, org, model string
	refiner, err := NewOpenAIRefiner(OpenAIOptions{
		APIKey:       "sk-test",
		Organization: "org-1",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			auth = r.Header.Get("Authorization")
			org = r.Header.Get("OpenAI-Organization")
			var body openAIChatRequest
			_ = json.NewDecoder(r.Body).Decode(&body)
			model = body.Model
			if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			return openAIResponse(http.StatusOK, "```text\nA cosy bakery bathed in morning light.\n```"), nil
		})},
	})
	if err != nil {
		t.Fatalf("NewOpenAIRefiner returned error: %v", err)
	}

	got := refiner.Refine(context.Background(), RefineRequest{Text: "bakery"})
	if got != "A cosy bakery bathed in morning light." {
		t.Fatalf("Refine = %q", got)
	}
	if auth != "Bearer sk-test" || org != "org-1" {
		t.Fatalf("headers auth=%q org=%q", auth, org)
	}
	if model != defaultOpenAIModel {
		t.Fatalf("model = %q", model)
	}
	if refiner.Provider() != openAIProviderName {
		t.Fatalf("Provider = %q", refiner.Provider())
	}
}

func TestOpenAIRefinerFallbackReasons(t *testing.T) {
	tests := []struct {
		name   string
		rt     roundTripFunc
		reason string
	}{
		{
			name: "transport",
			rt: func(*http.Request) (*http.Response, error) {
				return nil, errors.New("boom")
			},
			reason: "http_request",
		},
		{
			name: "status",
			rt: func(*http.Request) (*http.Response, error) {
				return openAIResponse(http.StatusTooManyRequests, ""), nil
			},
			reason: "http_429",
		},
		{
			name: "no choices",
			rt: func(*http.Request) (*http.Response, error) {
				return openAIResponse(http.StatusOK, ""), nil
			},
			reason: "empty_choices",
		},
		{
			name: "blank content",
			rt: func(*http.Request) (*http.Response, error) {
				return openAIResponse(http.StatusOK, "  \"\"  "), nil
			},
			reason: "empty_response",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured string
			refiner, err := NewOpenAIRefiner(OpenAIOptions{
				APIKey:     "sk-test",
				HTTPClient: &http.Client{Transport: tc.rt},
				OnFallback: func(reason string, err error) { captured = reason },
			})
			if err != nil {
				t.Fatalf("NewOpenAIRefiner returned error: %v", err)
			}
			got := refiner.SuggestSectionDetails(context.Background(), SectionRequest{SectionName: "team photos", ProjectContext: "Acme"})
			if got != "A clean, well-composed visual for the Team Photos section of a Acme website." {
				t.Fatalf("SuggestSectionDetails = %q", got)
			}
			if captured != tc.reason {
				t.Fatalf("reason = %q, want %q", captured, tc.reason)
			}
		})
	}
}

func TestNewOpenAIRefinerRequiresKey(t *testing.T) {
	if _, err := NewOpenAIRefiner(OpenAIOptions{APIKey: "  "}); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestNormalizeOpenAIModel(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		input  string
		model  string
		reason string
	}{
		{name: "exact_default", input: "gpt-4o-mini", model: "gpt-4o-mini", reason: ""},
		{name: "exact_turbo", input: "gpt-3.5-turbo", model: "gpt-3.5-turbo", reason: ""},
		{name: "alias_short", input: "gpt-3.5", model: "gpt-3.5-turbo", reason: "alias"},
		{name: "alias_underscore", input: "GPT4O_MINI", model: "gpt-4o-mini", reason: "alias"},
		{name: "unsupported", input: "gpt-4.1", model: "gpt-4o-mini", reason: "defaulted"},
		{name: "empty", input: "", model: "gpt-4o-mini", reason: ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gotModel, gotReason := normalizeOpenAIModel(tc.input)
			if gotModel != tc.model {
				t.Fatalf("model = %q, want %q", gotModel, tc.model)
			}
			if gotReason != tc.reason {
				t.Fatalf("reason = %q, want %q", gotReason, tc.reason)
			}
		})
	}
}

func TestNewOpenAIRefinerWarnsOnUnsupportedModel(t *testing.T) {
	t.Parallel()
	var reason, detail string
	refiner, err := NewOpenAIRefiner(OpenAIOptions{
		APIKey: "sk-test",
		Model:  "gpt-5 thinking",
		OnWarning: func(r, d string) {
			reason, detail = r, d
		},
	})
	if err != nil {
		t.Fatalf("NewOpenAIRefiner returned error: %v", err)
	}
	if refiner.model != defaultOpenAIModel {
		t.Fatalf("model = %q", refiner.model)
	}
	if reason != "model_defaulted" {
		t.Fatalf("reason = %q", reason)
	}
	if !strings.Contains(detail, "requested=gpt-5 thinking") || !strings.Contains(detail, "resolved=gpt-4o-mini") {
		t.Fatalf("detail = %q", detail)
	}
}

func TestStaticRefiner(t *testing.T) {
	s := NewStaticRefiner()
	if got := s.Refine(context.Background(), RefineRequest{Text: "  a   cosy\tcafe "}); got != "a cosy cafe" {
		t.Fatalf("Refine = %q", got)
	}
	if got := s.SuggestSectionDetails(context.Background(), SectionRequest{SectionName: "hero"}); got != "A clean, well-composed visual for the Hero section." {
		t.Fatalf("SuggestSectionDetails = %q", got)
	}
	if got := s.SuggestSectionDetails(context.Background(), SectionRequest{SectionName: " "}); got != "" {
		t.Fatalf("SuggestSectionDetails = %q, want empty", got)
	}
}

func TestParseDataURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		mime    string
		data    string
		wantErr bool
	}{
		{name: "jpeg", raw: "data:image/jpeg;base64,aGVsbG8=", mime: "image/jpeg", data: "hello"},
		{name: "no mime", raw: "data:;base64,aGVsbG8=", mime: "image/png", data: "hello"},
		{name: "bare payload", raw: "aGVsbG8=", mime: "image/png", data: "hello"},
		{name: "not base64", raw: "data:text/plain,hello", wantErr: true},
		{name: "no comma", raw: "data:image/png;base64", wantErr: true},
		{name: "garbage", raw: "data:image/png;base64,!!!", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			img, err := ParseDataURL(tc.raw)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidDataURL) {
					t.Fatalf("expected ErrInvalidDataURL, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDataURL returned error: %v", err)
			}
			if img.MIMEType != tc.mime || string(img.Data) != tc.data {
				t.Fatalf("got %q %q", img.MIMEType, img.Data)
			}
		})
	}
}

func TestLanguageHint(t *testing.T) {
	tests := map[string]string{
		"":      "",
		"en-US": "",
		"id-ID": " Respond in Indonesian.",
		"de":    " Respond in German.",
		"??":    "",
	}
	for locale, want := range tests {
		if got := languageHint(locale); got != want {
			t.Errorf("languageHint(%q) = %q, want %q", locale, got, want)
		}
	}
}
