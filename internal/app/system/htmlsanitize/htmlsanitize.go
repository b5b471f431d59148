// internal/app/system/htmlsanitize/htmlsanitize.go
// Package htmlsanitize strips markup from user-supplied chat content.
// Messages are plain text; anything that looks like HTML is removed
// before the content is persisted or fanned out.
package htmlsanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Sanitize removes all HTML elements from s and trims surrounding
// whitespace. Script and style element contents are dropped entirely.
func Sanitize(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}
