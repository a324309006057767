package domain

import (
	"fmt"
	"strings"
)

// AspectRatioCustom marks a project whose ratio comes from explicit width and height.
const AspectRatioCustom = "Custom"

// DefaultAspectRatio is used when a custom ratio lacks explicit dimensions.
const DefaultAspectRatio = "16:9"

// StyleImageReference is the style preset that defers to an extracted style prompt.
const StyleImageReference = "Image Reference"

// CategoryCustom marks a project that carries free-text category input.
const CategoryCustom = "Custom"

// StylePresets lists the built-in visual styles offered to users.
var StylePresets = []string{
	"Realistic Photography",
	"Professional Photoshoot",
	"3D Rendering",
	"Minimalist Illustration",
	"Abstract Modern",
	"Isometric 3D",
	"Claymorphism",
	"Futuristic Neon",
}

// CategoryPresets lists the built-in website categories.
var CategoryPresets = []string{
	"E-commerce Fashion",
	"SaaS Product",
	"Travel & Tourism",
	"Fintech Dashboard",
	"Healthcare & Medical",
	"Food & Restaurant",
	"Portfolio / Personal",
	"Real Estate",
}

// AspectRatioPresets lists the preset ratio tokens accepted without dimensions.
var AspectRatioPresets = []string{"16:9", "4:3", "1:1", "3:4", "9:16"}

// SectionConfig describes one named section of a project and how many images it needs.
type SectionConfig struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	ImageCount  int    `json:"image_count" yaml:"image_count"`
}

// ProjectConfig is the declarative description of a project. The core only reads it.
type ProjectConfig struct {
	Name           string          `json:"name" yaml:"name"`
	Category       string          `json:"category" yaml:"category"`
	CustomCategory string          `json:"custom_category,omitempty" yaml:"custom_category,omitempty"`
	Description    string          `json:"description" yaml:"description"`
	Style          string          `json:"style" yaml:"style"`
	StylePrompt    string          `json:"style_prompt,omitempty" yaml:"style_prompt,omitempty"`
	AspectRatio    string          `json:"aspect_ratio" yaml:"aspect_ratio"`
	Width          int             `json:"width,omitempty" yaml:"width,omitempty"`
	Height         int             `json:"height,omitempty" yaml:"height,omitempty"`
	Sections       []SectionConfig `json:"sections" yaml:"sections"`
}

// Clone returns a deep copy so callers cannot mutate shared section slices.
func (p ProjectConfig) Clone() ProjectConfig {
	out := p
	out.Sections = append([]SectionConfig(nil), p.Sections...)
	return out
}

// Section looks up a section by identifier.
func (p ProjectConfig) Section(id string) (SectionConfig, bool) {
	for _, s := range p.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return SectionConfig{}, false
}

// EffectiveCategory prefers the free-text category when present.
func (p ProjectConfig) EffectiveCategory() string {
	if c := strings.TrimSpace(p.CustomCategory); c != "" {
		return c
	}
	return p.Category
}

// TargetAspectRatio normalizes the aspect specifier into a "W:H" string.
func (p ProjectConfig) TargetAspectRatio() string {
	ratio := strings.TrimSpace(p.AspectRatio)
	switch {
	case ratio == AspectRatioCustom && p.Width > 0 && p.Height > 0:
		return fmt.Sprintf("%d:%d", p.Width, p.Height)
	case ratio == AspectRatioCustom, ratio == "":
		return DefaultAspectRatio
	default:
		return ratio
	}
}

// TotalImages sums the requested image counts across sections.
func (p ProjectConfig) TotalImages() int {
	total := 0
	for _, s := range p.Sections {
		total += s.ImageCount
	}
	return total
}

// Validate reports whether the config can be expanded into a batch.
func (p ProjectConfig) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: project name is required", ErrInvalidProject)
	}
	seen := make(map[string]struct{}, len(p.Sections))
	for i, s := range p.Sections {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("%w: section %d has no id", ErrInvalidProject, i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: duplicate section id %q", ErrInvalidProject, s.ID)
		}
		seen[s.ID] = struct{}{}
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("%w: section %q has no name", ErrInvalidProject, s.ID)
		}
		if s.ImageCount < 1 {
			return fmt.Errorf("%w: section %q must request at least one image", ErrInvalidProject, s.Name)
		}
	}
	return nil
}

// DefaultProject returns the starter project with the stock sections.
// newID supplies section identifiers.
func DefaultProject(newID func() string) ProjectConfig {
	sections := []SectionConfig{
		{Name: "Hero Section", Description: "Main banner, high impact, clear value prop", ImageCount: 2},
		{Name: "Features", Description: "Grid of product features or services", ImageCount: 3},
		{Name: "About Us", Description: "Team or company story visual", ImageCount: 1},
		{Name: "Testimonials", Description: "User avatar or background for quotes", ImageCount: 2},
	}
	for i := range sections {
		sections[i].ID = newID()
	}
	return ProjectConfig{
		Name:        "New Project",
		Category:    CategoryPresets[0],
		Style:       StylePresets[0],
		AspectRatio: AspectRatioPresets[0],
		Sections:    sections,
	}
}
