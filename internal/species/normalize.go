package species

import (
	"regexp"
	"strings"
)

// whitespaceRun matches any run of whitespace for collapsing.
var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize canonicalizes a raw species string: leading/trailing whitespace is
// trimmed, underscores become spaces, and internal whitespace runs collapse to
// a single space. The result is the unit of deduplication and cache keying.
// Normalize is idempotent; an empty result means the row carries no species.
func Normalize(raw string) string {
	name := strings.TrimSpace(raw)
	name = strings.ReplaceAll(name, "_", " ")
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(name), " ")
}
