package prompt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ErrInvalidDataURL is returned for malformed data URLs.
var ErrInvalidDataURL = errors.New("prompt: invalid data url")

// ParseDataURL decodes a base64 "data:<mime>;base64,<payload>" URL. A missing
// MIME type defaults to image/png. A bare base64 payload is accepted too.
func ParseDataURL(raw string) (ReferenceImage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ReferenceImage{}, ErrInvalidDataURL
	}
	mime := "image/png"
	payload := raw
	if strings.HasPrefix(raw, "data:") {
		header, body, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
		if !ok {
			return ReferenceImage{}, fmt.Errorf("%w: missing payload", ErrInvalidDataURL)
		}
		params := strings.Split(header, ";")
		if !strings.EqualFold(params[len(params)-1], "base64") {
			return ReferenceImage{}, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
		}
		if m := strings.TrimSpace(params[0]); m != "" && !strings.EqualFold(m, "base64") {
			mime = strings.ToLower(m)
		}
		payload = body
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ReferenceImage{}, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if len(data) == 0 {
		return ReferenceImage{}, fmt.Errorf("%w: empty payload", ErrInvalidDataURL)
	}
	return ReferenceImage{Data: data, MIMEType: mime}, nil
}

// languageHint returns an instruction to answer in the locale's language, or
// "" for English and unknown locales.
func languageHint(locale string) string {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	if base.String() == "en" || base.String() == "und" {
		return ""
	}
	name := display.Languages(language.English).Name(base)
	if name == "" {
		return ""
	}
	return fmt.Sprintf(" Respond in %s.", name)
}

func buildRefinePrompt(req RefineRequest) string {
	return fmt.Sprintf("Refine the following website description to be more professional, descriptive, and visually evocative for an AI image generator. Keep it under 50 words.%s Input: %q", languageHint(req.Locale), req.Text)
}

func buildSectionPrompt(req SectionRequest) string {
	return fmt.Sprintf("Write a concise visual description (1 sentence) for a %q section of a %q website. Focus on what objects, people, or composition should be visible.%s", req.SectionName, req.ProjectContext, languageHint(req.Locale))
}

// cleanModelText strips code fences and wrapping quotes models like to add.
func cleanModelText(raw string) string {
	text := trimCodeFence(raw)
	text = strings.TrimSpace(text)
	if len(text) >= 2 {
		if (text[0] == '"' && text[len(text)-1] == '"') || (text[0] == '\'' && text[len(text)-1] == '\'') {
			text = strings.TrimSpace(text[1 : len(text)-1])
		}
	}
	return text
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```text")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

func coalesce(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}
