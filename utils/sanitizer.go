package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy strips all HTML from user-generated content.
var StrictPolicy *bluemonday.Policy

func init() {
	StrictPolicy = bluemonday.StrictPolicy()
}

// PreviewText strips markup and truncates content for mail list previews.
func PreviewText(content string, max int) string {
	plain := strings.TrimSpace(StrictPolicy.Sanitize(content))
	if max > 0 && len(plain) > max {
		return plain[:max]
	}
	return plain
}
