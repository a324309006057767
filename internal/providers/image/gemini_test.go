package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"testing"

	"asseto/internal/providers/genai"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func reply(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func imageReply(t *testing.T) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 3))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	data := base64.StdEncoding.EncodeToString(buf.Bytes())
	return reply(http.StatusOK, `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"`+data+`"}}]}}]}`)
}

func remoteClient(t *testing.T, rt roundTripFunc) *genai.Client {
	t.Helper()
	client, err := genai.NewClient(genai.Options{APIKey: "k", HTTPClient: &http.Client{Transport: rt}})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client
}

func TestGeminiGeneratorRemoteImage(t *testing.T) {
	client := remoteClient(t, func(*http.Request) (*http.Response, error) {
		return imageReply(t), nil
	})
	asset, err := NewGeminiGenerator(client).Generate(context.Background(), GenerateRequest{Prompt: "p", AspectRatio: "1:1"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if asset.Width != 3 || asset.Height != 3 || asset.MIMEType != "image/png" {
		t.Fatalf("unexpected asset: %s %dx%d", asset.MIMEType, asset.Width, asset.Height)
	}
}

func TestGeminiGeneratorFailsOnceWithoutRetry(t *testing.T) {
	calls := 0
	client := remoteClient(t, func(*http.Request) (*http.Response, error) {
		calls++
		return reply(http.StatusServiceUnavailable, `{"error":{"message":"overloaded"}}`), nil
	})

	_, err := NewGeminiGenerator(client).Generate(context.Background(), GenerateRequest{Prompt: "p"})
	var apiErr *genai.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 APIError, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
