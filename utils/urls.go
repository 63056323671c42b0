package utils

import "strings"

// ExtractURLs scans free text and returns, in order of appearance, every token
// beginning with http:// or https://. A URL runs until the next whitespace.
// Duplicates are kept; the caller decides whether to collapse them.
func ExtractURLs(text string) []string {
	urls := []string{}
	for _, tok := range strings.Fields(text) {
		if strings.HasPrefix(tok, "http://") || strings.HasPrefix(tok, "https://") {
			urls = append(urls, tok)
		}
	}
	return urls
}
