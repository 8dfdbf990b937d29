// Package genre normalizes user-supplied genre labels before they are stored.
package genre

import "strings"

// aliases maps a lower-cased label to its canonical catalog label. Canonical
// labels must never appear as keys, otherwise Normalize stops being idempotent.
var aliases = map[string]string{
	"hip-hop": "Hip-Hop/Rap",
	"hip hop": "Hip-Hop/Rap",
	"hiphop":  "Hip-Hop/Rap",
	"rap":     "Hip-Hop/Rap",
	"r&b":     "R&B",
	"rnb":     "R&B",
}

// Canonical returns the catalog label for a single genre.
func Canonical(g string) string {
	g = strings.TrimSpace(g)
	if c, ok := aliases[strings.ToLower(g)]; ok {
		return c
	}
	return g
}

// Normalize trims, resolves aliases and removes duplicates (case-insensitive,
// first spelling wins). Blank labels are dropped. The result is never nil.
func Normalize(genres []string) []string {
	out := make([]string, 0, len(genres))
	seen := make(map[string]struct{}, len(genres))
	for _, g := range genres {
		c := Canonical(g)
		if c == "" {
			continue
		}
		key := strings.ToLower(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
