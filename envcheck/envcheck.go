// Package envcheck finds the environment variables a shell script expects from its caller.
package envcheck

import (
	"regexp"
	"sort"
)

var (
	referencePattern  = regexp.MustCompile(`\$\{?([A-Z_][A-Z0-9_]*)`)
	assignmentPattern = regexp.MustCompile(`(?m)(?:^\s*|[;&|]\s*|\bexport\s+|\blocal\s+|\bdeclare\s+(?:-\w+\s+)*)([A-Z_][A-Z0-9_]*)(?:\+)?=`)
	loopPattern       = regexp.MustCompile(`\b(?:for|read(?:\s+-\w+)*)\s+([A-Z_][A-Z0-9_]*)`)
)

// Required returns the upper case variables script reads without assigning them itself, sorted.
func Required(script string) []string {
	assigned := map[string]bool{}
	for _, match := range assignmentPattern.FindAllStringSubmatch(script, -1) {
		assigned[match[1]] = true
	}
	for _, match := range loopPattern.FindAllStringSubmatch(script, -1) {
		assigned[match[1]] = true
	}

	seen := map[string]bool{}
	var required []string
	for _, match := range referencePattern.FindAllStringSubmatch(script, -1) {
		name := match[1]
		if assigned[name] || seen[name] {
			continue
		}
		seen[name] = true
		required = append(required, name)
	}
	sort.Strings(required)

	return required
}

// Missing returns the variables of Required(script) lookup does not know.
func Missing(script string, lookup func(key string) string) []string {
	var missing []string
	for _, name := range Required(script) {
		if lookup(name) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
