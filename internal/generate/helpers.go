package generate

import (
	"strings"

	"github.com/chartfold/chartfold/internal/extract"
	"github.com/chartfold/chartfold/internal/resource"
)

// HelpersFile assembles the shared template units into the helpers file
// body, banner first, one blank line between units, trailing newline.
func HelpersFile(descriptors []*extract.Descriptor, chart resource.ChartInfo) (string, error) {
	parts := []string{
		"{{/*",
		"Base templates shared by all microservice resources.",
		"Generated from the union of fields observed across the chart's",
		"services; per-service values select which optional blocks render.",
		"*/}}",
	}

	for _, d := range descriptors {
		text, err := Template(d, chart)
		if err != nil {
			return "", err
		}
		parts = append(parts, "", text)
	}

	return strings.Join(parts, "\n") + "\n", nil
}
