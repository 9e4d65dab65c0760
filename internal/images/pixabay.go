package images

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const pixabayEndpoint = "https://pixabay.com/api/"

type PixabaySearchItem struct {
	Id            int    `json:"id"`
	Tags          string `json:"tags"`
	WebFormatUrl  string `json:"webformatURL"`
	LargeImageUrl string `json:"largeImageURL"`
	PreviewUrl    string `json:"previewURL"`
	User          string `json:"user"`
	PageUrl       string `json:"pageURL"`
}

type PixabaySearchResult struct {
	Total     int                 `json:"total"`
	TotalHits int                 `json:"totalHits"`
	Hits      []PixabaySearchItem `json:"hits"`
}

type PixabayProvider struct {
	apiClient
	apiKey string
}

func NewPixabayProvider(apiKey string, opts ...ProviderOption) *PixabayProvider {
	return &PixabayProvider{
		apiClient: newAPIClient("pixabay", pixabayEndpoint, 5*time.Second, opts),
		apiKey:    apiKey,
	}
}

func (api *PixabayProvider) Name() string { return SourcePixabay }

func (api *PixabayProvider) Search(ctx context.Context, term string) SearchResult {
	if api.apiKey == "" {
		return failed(ErrNotConfigured)
	}
	qParam := url.Values{}
	qParam.Add("key", api.apiKey)
	qParam.Add("q", term)
	qParam.Add("image_type", "photo")
	qParam.Add("per_page", strconv.Itoa(MaxResults))
	qParam.Add("safesearch", "true")
	qParam.Add("min_width", "300")

	data := PixabaySearchResult{}
	if err := api.getJSON(ctx, qParam, nil, &data); err != nil {
		api.log.Warn("Pixabay image search failed", zap.String("term", term), zap.Error(err))
		return failed(fmt.Errorf("pixabay: %w", err))
	}

	output := make([]ImageResult, 0, len(data.Hits))
	for _, el := range data.Hits {
		if el.WebFormatUrl == "" {
			continue
		}
		output = append(output, ImageResult{
			ID:           strconv.Itoa(el.Id),
			URL:          el.WebFormatUrl,
			FullURL:      firstNonEmpty(el.LargeImageUrl, el.WebFormatUrl),
			Thumbnail:    firstNonEmpty(el.PreviewUrl, el.WebFormatUrl),
			Alt:          firstNonEmpty(el.Tags, term),
			Photographer: firstNonEmpty(el.User, SourcePixabay),
			Source:       SourcePixabay,
		})
	}
	return SearchResult{Images: output}
}
