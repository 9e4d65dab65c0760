// Package dictionary looks up definitions of English words, first in the Free
// Dictionary API and then, when a RapidAPI key is configured, in WordsAPI.
package dictionary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/gitmatrixmax/google-dictionary/internal/logger"
)

const (
	freeDictionaryEndpoint = "https://api.dictionaryapi.dev/api/v2/entries/en/"
	wordsAPIEndpoint       = "https://wordsapiv1.p.rapidapi.com/words/"
	wordsAPIHost           = "wordsapiv1.p.rapidapi.com"

	maxDefinitions = 3
	maxSynonyms    = 5
	maxMeanings    = 3
)

// NoDefinition is the Error text of a Result for a word no source knows.
const NoDefinition = "No definition found"

var ErrNotFound = errors.New("word not found")

type Definition struct {
	Definition string   `json:"definition"`
	Example    string   `json:"example"`
	Synonyms   []string `json:"synonyms"`
}

type Meaning struct {
	PartOfSpeech string       `json:"partOfSpeech"`
	Definitions  []Definition `json:"definitions"`
}

// Result is the text-only dictionary payload served to clients.
type Result struct {
	Word       string    `json:"word"`
	Phonetic   string    `json:"phonetic"`
	AudioURL   string    `json:"audioUrl"`
	Meanings   []Meaning `json:"meanings"`
	SourceURLs []string  `json:"sourceUrls"`
	Error      string    `json:"error,omitempty"`
}

func notFound(word string) *Result {
	return &Result{
		Word:       word,
		Meanings:   []Meaning{},
		SourceURLs: []string{},
		Error:      NoDefinition,
	}
}

type Client struct {
	http        *http.Client
	freeDictURL string
	wordsAPIURL string
	rapidAPIKey string
	timeout     time.Duration
	cacheTTL    time.Duration
	cache       *cache.Cache
	log         *zap.Logger
}

type Option func(*Client)

// WithRapidAPIKey enables the WordsAPI fallback.
func WithRapidAPIKey(key string) Option {
	return func(c *Client) { c.rapidAPIKey = key }
}

// WithCacheTTL keeps successful lookups for ttl; 0 disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cacheTTL = ttl }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithEndpoints(freeDictionary, wordsAPI string) Option {
	return func(c *Client) {
		c.freeDictURL = freeDictionary
		c.wordsAPIURL = wordsAPI
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.http = client }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http:        &http.Client{},
		freeDictURL: freeDictionaryEndpoint,
		wordsAPIURL: wordsAPIEndpoint,
		timeout:     5 * time.Second,
		cacheTTL:    10 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cacheTTL > 0 {
		c.cache = cache.New(c.cacheTTL, 2*c.cacheTTL)
	}
	c.log = logger.Named(c.log, "dictionary")
	return c
}

// Lookup returns the definition of word. A word unknown to every source
// yields a Result carrying NoDefinition rather than an error; an error means
// no source could be asked.
func (c *Client) Lookup(ctx context.Context, word string) (*Result, error) {
	cacheKey := strings.ToLower(word)
	if c.cache != nil {
		if cached, found := c.cache.Get(cacheKey); found {
			if res, ok := cached.(*Result); ok {
				c.log.Debug("Dictionary cache hit", zap.String("word", cacheKey))
				copied := *res
				return &copied, nil
			}
		}
	}

	res, err := c.freeDictionary(ctx, word)
	if err != nil {
		c.log.Debug("Free Dictionary lookup failed", zap.String("word", word), zap.Error(err))
		res, err = c.fallback(ctx, word, err)
		if err != nil {
			return nil, err
		}
	}

	if c.cache != nil && res.Error == "" {
		c.cache.Set(cacheKey, res, cache.DefaultExpiration)
	}
	copied := *res
	return &copied, nil
}

func (c *Client) fallback(ctx context.Context, word string, primaryErr error) (*Result, error) {
	if c.rapidAPIKey == "" {
		if errors.Is(primaryErr, ErrNotFound) {
			return notFound(word), nil
		}
		return nil, fmt.Errorf("dictionary lookup failed: %w", primaryErr)
	}

	res, err := c.wordsAPI(ctx, word)
	if err == nil {
		return res, nil
	}
	c.log.Warn("WordsAPI also failed", zap.String("word", word), zap.Error(err))
	if errors.Is(primaryErr, ErrNotFound) && errors.Is(err, ErrNotFound) {
		return notFound(word), nil
	}
	return nil, fmt.Errorf("dictionary lookup failed: %w", primaryErr)
}

// get issues a GET bounded by the client timeout and hands a 2xx body to decode.
func (c *Client) get(ctx context.Context, target string, header http.Header, decode func(io.Reader) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", req.URL.Host, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%s: unexpected status code: %d", req.URL.Host, resp.StatusCode)
	}
	if err := decode(resp.Body); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func wordURL(base, word string) string {
	return base + url.PathEscape(word)
}
