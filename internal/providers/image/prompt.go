package image

import (
	"fmt"
	"strings"

	"asseto/internal/domain"
)

// DefaultSectionDescription stands in for sections without a description.
const DefaultSectionDescription = "Standard web section layout"

// BuildSectionPrompt turns a project and one of its sections into the
// instruction sent to the image model.
func BuildSectionPrompt(project domain.ProjectConfig, section domain.SectionConfig) string {
	category := strings.TrimSpace(project.EffectiveCategory())
	if category == "" {
		category = "general"
	}

	style := strings.TrimSpace(project.Style)
	if project.Style == domain.StyleImageReference && strings.TrimSpace(project.StylePrompt) != "" {
		style = "Match this specific visual style: " + strings.TrimSpace(project.StylePrompt)
	}

	description := strings.TrimSpace(section.Description)
	if description == "" {
		description = DefaultSectionDescription
	}

	lines := []string{
		fmt.Sprintf("Create a high-quality image for a %q website section of a %s project named %q.", section.Name, category, project.Name),
	}
	if about := strings.TrimSpace(project.Description); about != "" {
		lines = append(lines, fmt.Sprintf("Project context: %s", about))
	}
	lines = append(lines,
		fmt.Sprintf("Section content: %s", description),
		fmt.Sprintf("Visual style: %s", style),
		"Requirements:",
		"- High resolution, suitable for a website asset.",
		"- Do not include any text, letters or words overlaid on the image.",
		"- Clean, modern and professional composition.",
	)
	return strings.Join(lines, "\n")
}
