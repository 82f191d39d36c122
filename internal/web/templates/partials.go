// Package templates holds the HTML fragments the import server returns to
// HTMX requests. Components are written in partials.templ; run
// `templ generate` after editing it.
package templates

import (
	"fmt"
	"slices"

	"github.com/JonMunkholm/activity-import/internal/core"
)

// commitLabel is the text of the commit button.
func commitLabel(v core.View) string {
	if v.ActivitiesToImport > 0 {
		return fmt.Sprintf("Import %d activities", v.ActivitiesToImport)
	}
	return "Import"
}

func isSelected(selected []string, name string) bool {
	return slices.Contains(selected, name)
}
