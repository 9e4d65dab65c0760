package images

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/k3a/html2text"
	"go.uber.org/zap"
)

const googleEndpoint = "https://www.googleapis.com/customsearch/v1"

type GoogleSearchItem struct {
	Title     string          `json:"title"`
	HTMLTitle string          `json:"htmlTitle"`
	Link      string          `json:"link"`
	Image     GoogleImageInfo `json:"image"`
}

type GoogleImageInfo struct {
	ContextLink   string `json:"contextLink"`
	ThumbnailLink string `json:"thumbnailLink"`
}

type GoogleSearchResult struct {
	Items []GoogleSearchItem `json:"items"`
}

// GoogleProvider queries the Google Programmable Search image API.
type GoogleProvider struct {
	apiClient
	apiKey string
	cx     string
}

// NewGoogleProvider needs both an API key and a search engine id; without
// either the provider reports ErrNotConfigured.
func NewGoogleProvider(apiKey, cx string, opts ...ProviderOption) *GoogleProvider {
	return &GoogleProvider{
		apiClient: newAPIClient("google", googleEndpoint, 3*time.Second, opts),
		apiKey:    apiKey,
		cx:        cx,
	}
}

func (api *GoogleProvider) Name() string { return SourceGoogle }

func (api *GoogleProvider) Search(ctx context.Context, term string) SearchResult {
	if api.apiKey == "" || api.cx == "" {
		return failed(ErrNotConfigured)
	}
	qParam := url.Values{}
	qParam.Add("key", api.apiKey)
	qParam.Add("cx", api.cx)
	qParam.Add("q", term)
	qParam.Add("searchType", "image")
	qParam.Add("num", strconv.Itoa(MaxResults))
	qParam.Add("safe", "active")
	qParam.Add("imgSize", "medium")
	qParam.Add("imgType", "photo")

	data := GoogleSearchResult{}
	if err := api.getJSON(ctx, qParam, nil, &data); err != nil {
		api.log.Warn("Google image search failed", zap.String("term", term), zap.Error(err))
		return failed(fmt.Errorf("google: %w", err))
	}

	output := make([]ImageResult, 0, len(data.Items))
	for i, el := range data.Items {
		if el.Link == "" {
			continue
		}
		output = append(output, ImageResult{
			ID:           "google_" + strconv.Itoa(i),
			URL:          el.Link,
			FullURL:      el.Link,
			Thumbnail:    firstNonEmpty(el.Image.ThumbnailLink, el.Link),
			Alt:          firstNonEmpty(el.Title, plainText(el.HTMLTitle), term),
			Photographer: firstNonEmpty(hostname(el.Image.ContextLink), SourceGoogle),
			Source:       SourceGoogle,
		})
	}
	return SearchResult{Images: output}
}

func plainText(html string) string {
	if html == "" {
		return ""
	}
	return strings.TrimSpace(html2text.HTML2Text(html))
}

func hostname(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
