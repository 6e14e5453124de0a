// Package params implements the Template Parameter Processor: it resolves
// every placeholder of a template from the request payload, the retrieval
// methods of the parameter registry or declared defaults, and renders the
// template with the resolved values.
package params

import (
	"regexp"
	"sort"
)

// placeholderRe matches {identifier} tokens.
var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExtractPlaceholders returns the distinct placeholder names referenced by
// template, sorted.
func ExtractPlaceholders(template string) []string {
	seen := make(map[string]struct{})
	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		seen[m[1]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
