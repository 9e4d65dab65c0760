package images

import (
	"fmt"
	"net/url"
	"strings"
)

var placeholderColors = []string{"4285f4", "34a853", "ea4335", "fbbc04", "9aa0a6", "5f6368"}

const placeholderBase = "https://via.placeholder.com"

// GeneratePlaceholders returns MaxResults stand-in images showing term as text.
// The output depends on term only.
func GeneratePlaceholders(term string) []ImageResult {
	text := escapeComponent(term)
	out := make([]ImageResult, MaxResults)
	for i := range out {
		color := placeholderColors[i%len(placeholderColors)]
		out[i] = ImageResult{
			ID:           fmt.Sprintf("placeholder_%d", i),
			URL:          placeholderURL("300x200", color, text),
			FullURL:      placeholderURL("600x400", color, text),
			Thumbnail:    placeholderURL("150x100", color, text),
			Alt:          term,
			Photographer: SourcePlaceholder,
			Source:       SourcePlaceholder,
		}
	}
	return out
}

func placeholderURL(size, color, text string) string {
	return fmt.Sprintf("%s/%s/%s/ffffff?text=%s", placeholderBase, size, color, text)
}

// escapeComponent escapes like a URI component: spaces become %20, not '+'.
func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
