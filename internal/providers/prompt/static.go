package prompt

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// StaticRefiner is the offline fallback. It never calls a model.
type StaticRefiner struct{}

func NewStaticRefiner() *StaticRefiner {
	return &StaticRefiner{}
}

// Refine returns the text unchanged apart from whitespace cleanup.
func (s *StaticRefiner) Refine(ctx context.Context, req RefineRequest) string {
	return collapseSpaces(req.Text)
}

// SuggestSectionDetails renders a generic composition hint for the section.
func (s *StaticRefiner) SuggestSectionDetails(ctx context.Context, req SectionRequest) string {
	name := collapseSpaces(req.SectionName)
	if name == "" {
		return ""
	}
	c := cases.Title(language.Und)
	project := collapseSpaces(req.ProjectContext)
	if project == "" {
		return fmt.Sprintf("A clean, well-composed visual for the %s section.", c.String(name))
	}
	return fmt.Sprintf("A clean, well-composed visual for the %s section of a %s website.", c.String(name), project)
}

func (s *StaticRefiner) Provider() string {
	return staticProviderName
}

func collapseSpaces(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

var _ Refiner = (*StaticRefiner)(nil)
