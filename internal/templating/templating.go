// Package templating renders the {{name}} placeholders used by alert messages
// and email bodies.
package templating

import (
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z][A-Za-z0-9_]*)\s*\}\}`)

// Variables lists the placeholder names in tmpl, in first-seen order.
func Variables(tmpl string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Render substitutes vars into tmpl. Placeholders without a value are left as written.
func Render(tmpl string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// Unknown returns the placeholders of tmpl that are not in allowed.
func Unknown(tmpl string, allowed []string) []string {
	ok := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		ok[strings.ToLower(a)] = true
	}
	var out []string
	for _, v := range Variables(tmpl) {
		if !ok[strings.ToLower(v)] {
			out = append(out, v)
		}
	}
	return out
}
