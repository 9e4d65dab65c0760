package images

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const unsplashEndpoint = "https://api.unsplash.com/search/photos"

type UnsplashPhoto struct {
	Id             string       `json:"id"`
	Description    string       `json:"description"`
	AltDescription string       `json:"alt_description"`
	User           UnsplashUser `json:"user"`
	Urls           UnsplashUrls `json:"urls"`
}

type UnsplashUser struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

type UnsplashUrls struct {
	Regular string `json:"regular"`
	Small   string `json:"small"`
	Thumb   string `json:"thumb"`
}

type UnsplashSearchResult struct {
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
	Results    []UnsplashPhoto `json:"results"`
}

type UnsplashProvider struct {
	apiClient
	accessKey string
}

func NewUnsplashProvider(accessKey string, opts ...ProviderOption) *UnsplashProvider {
	return &UnsplashProvider{
		apiClient: newAPIClient("unsplash", unsplashEndpoint, 3*time.Second, opts),
		accessKey: accessKey,
	}
}

func (unsp *UnsplashProvider) Name() string { return SourceUnsplash }

func (unsp *UnsplashProvider) Search(ctx context.Context, term string) SearchResult {
	if unsp.accessKey == "" {
		return failed(ErrNotConfigured)
	}
	qParam := url.Values{}
	qParam.Add("query", term)
	qParam.Add("per_page", strconv.Itoa(MaxResults))
	qParam.Add("orientation", "landscape")
	qParam.Add("content_filter", "high")
	header := http.Header{}
	header.Set("Accept-Version", "v1")
	header.Set("Authorization", "Client-ID "+unsp.accessKey)

	data := UnsplashSearchResult{}
	if err := unsp.getJSON(ctx, qParam, header, &data); err != nil {
		unsp.log.Warn("Unsplash search failed", zap.String("term", term), zap.Error(err))
		return failed(fmt.Errorf("unsplash: %w", err))
	}

	output := make([]ImageResult, 0, len(data.Results))
	for _, el := range data.Results {
		display := firstNonEmpty(el.Urls.Small, el.Urls.Regular)
		if display == "" {
			continue
		}
		output = append(output, ImageResult{
			ID:           el.Id,
			URL:          display,
			FullURL:      firstNonEmpty(el.Urls.Regular, display),
			Thumbnail:    firstNonEmpty(el.Urls.Thumb, display),
			Alt:          firstNonEmpty(el.AltDescription, el.Description, term),
			Photographer: firstNonEmpty(el.User.Name, el.User.Username, SourceUnsplash),
			Source:       SourceUnsplash,
		})
	}
	return SearchResult{Images: output}
}
