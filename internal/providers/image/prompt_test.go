package image

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"asseto/internal/domain"
	"asseto/internal/providers/genai"
)

func TestBuildSectionPrompt(t *testing.T) {
	project := domain.ProjectConfig{
		Name:           "Acme",
		Category:       domain.CategoryCustom,
		CustomCategory: "Pet Grooming",
		Description:    "Mobile grooming vans",
		Style:          "3D Rendering",
	}
	section := domain.SectionConfig{ID: "s1", Name: "Hero"}

	got := BuildSectionPrompt(project, section)
	for _, want := range []string{`"Hero"`, "Pet Grooming", `"Acme"`, "Mobile grooming vans", DefaultSectionDescription, "Visual style: 3D Rendering"} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
}

func TestBuildSectionPromptImageReference(t *testing.T) {
	project := domain.ProjectConfig{Name: "Acme", Category: "SaaS Product", Style: domain.StyleImageReference, StylePrompt: "Soft pastel light."}
	got := BuildSectionPrompt(project, domain.SectionConfig{Name: "Features", Description: "Icons grid"})
	if !strings.Contains(got, "Match this specific visual style: Soft pastel light.") {
		t.Fatalf("expected style reference instruction:\n%s", got)
	}
	if strings.Contains(got, DefaultSectionDescription) {
		t.Fatalf("explicit description should win:\n%s", got)
	}

	project.StylePrompt = ""
	got = BuildSectionPrompt(project, domain.SectionConfig{Name: "Features"})
	if !strings.Contains(got, "Visual style: "+domain.StyleImageReference) {
		t.Fatalf("expected raw style without extracted prompt:\n%s", got)
	}
}

func TestGeminiGeneratorSynthetic(t *testing.T) {
	client, err := genai.NewClient(genai.Options{HTTPClient: &http.Client{}})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	asset, err := NewGeminiGenerator(client).Generate(context.Background(), GenerateRequest{Prompt: "p", AspectRatio: "1:1"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if asset.MIMEType != "image/png" || len(asset.Data) == 0 || asset.Width != asset.Height {
		t.Fatalf("unexpected asset: %s %dx%d", asset.MIMEType, asset.Width, asset.Height)
	}
}

func TestGeneratorFunc(t *testing.T) {
	boom := errors.New("boom")
	var gen Generator = GeneratorFunc(func(ctx context.Context, req GenerateRequest) (Asset, error) {
		return Asset{}, boom
	})
	if _, err := gen.Generate(context.Background(), GenerateRequest{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
