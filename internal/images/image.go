// Package images resolves a small set of illustrative images for a word by
// trying external image-search providers in priority order, caching what it
// finds and falling back to generated placeholders.
package images

import (
	"context"
	"errors"
)

// MaxResults caps every result set handed to callers.
const MaxResults = 3

// Source names carried in ImageResult.Source.
const (
	SourceGoogle      = "Google"
	SourceUnsplash    = "Unsplash"
	SourcePixabay     = "Pixabay"
	SourcePlaceholder = "Placeholder"
)

// ErrNotConfigured is reported by a provider whose credentials are missing.
var ErrNotConfigured = errors.New("provider credentials not configured")

type ImageResult struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	FullURL      string `json:"fullUrl"`
	Thumbnail    string `json:"thumbnail"`
	Alt          string `json:"alt"`
	Photographer string `json:"photographer"`
	Source       string `json:"source"`
}

// Provider wraps one image-search API. Search never fails outright: any
// problem yields an empty Images slice, with Err describing why.
type Provider interface {
	Name() string
	Search(ctx context.Context, term string) SearchResult
}

type SearchResult struct {
	Images []ImageResult
	Err    error
}

func failed(err error) SearchResult {
	return SearchResult{Images: []ImageResult{}, Err: err}
}

// WordImages is the payload of the image lookup endpoint.
type WordImages struct {
	Images []ImageResult `json:"images"`
}
