package images

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeProvider counts calls and answers from a canned function.
type fakeProvider struct {
	name   string
	calls  atomic.Int32
	answer func(term string) SearchResult
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(ctx context.Context, term string) SearchResult {
	f.calls.Add(1)
	return f.answer(term)
}

func returning(n int, source string) func(string) SearchResult {
	return func(term string) SearchResult {
		out := make([]ImageResult, n)
		for i := range out {
			out[i] = ImageResult{
				ID:     fmt.Sprintf("%s_%d", strings.ToLower(source), i),
				URL:    fmt.Sprintf("https://img.example/%s/%d.jpg", term, i),
				Alt:    term,
				Source: source,
			}
		}
		return SearchResult{Images: out}
	}
}

func unconfigured(string) SearchResult { return failed(ErrNotConfigured) }

func erroring(string) SearchResult { return failed(errors.New("boom")) }

func emptyResult(string) SearchResult { return SearchResult{Images: []ImageResult{}} }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// mapCache is a plain map-backed Cache so tests can inspect stored entries.
type mapCache struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func newMapCache() *mapCache { return &mapCache{entries: map[string]Entry{}} }

func (m *mapCache) Get(key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e, ok
}

func (m *mapCache) Set(key string, e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
}

type trio struct {
	primary, secondary, tertiary *fakeProvider
}

func newTrio(p, s, t func(string) SearchResult) trio {
	return trio{
		primary:   &fakeProvider{name: SourceGoogle, answer: p},
		secondary: &fakeProvider{name: SourceUnsplash, answer: s},
		tertiary:  &fakeProvider{name: SourcePixabay, answer: t},
	}
}

func (tr trio) list() []Provider { return []Provider{tr.primary, tr.secondary, tr.tertiary} }

func (tr trio) total() int32 {
	return tr.primary.calls.Load() + tr.secondary.calls.Load() + tr.tertiary.calls.Load()
}

func assertWellFormed(t *testing.T, got []ImageResult) {
	t.Helper()
	require.NotEmpty(t, got)
	require.LessOrEqual(t, len(got), MaxResults)
	seen := map[string]bool{}
	for _, img := range got {
		assert.NotEmpty(t, img.ID)
		assert.False(t, seen[img.ID], "duplicate id %s", img.ID)
		seen[img.ID] = true
	}
}

func TestResolveNoCredentialsGivesPlaceholders(t *testing.T) {
	tr := newTrio(unconfigured, unconfigured, unconfigured)
	cache := newMapCache()
	c := NewCascade(cache, tr.list())

	got := c.Resolve(context.Background(), "cat")

	require.Len(t, got, 3)
	for i, img := range got {
		assert.Equal(t, fmt.Sprintf("placeholder_%d", i), img.ID)
		assert.Equal(t, "cat", img.Alt)
		assert.Equal(t, SourcePlaceholder, img.Source)
	}
	assert.Equal(t, GeneratePlaceholders("cat"), got)

	entry, ok := cache.Get("cat")
	require.True(t, ok, "placeholders are cached too")
	assert.Equal(t, got, entry.Data)
}

func TestResolvePrimaryWinsAndIsTruncated(t *testing.T) {
	tr := newTrio(returning(5, SourceGoogle), returning(3, SourceUnsplash), returning(3, SourcePixabay))
	cache := newMapCache()
	clock := newFakeClock()
	c := NewCascade(cache, tr.list(), WithClock(clock.Now))

	got := c.Resolve(context.Background(), "dog")

	require.Len(t, got, 3)
	for _, img := range got {
		assert.Equal(t, SourceGoogle, img.Source)
	}
	assert.EqualValues(t, 1, tr.primary.calls.Load())
	assert.EqualValues(t, 0, tr.secondary.calls.Load(), "secondary must not run after a primary hit")
	assert.EqualValues(t, 0, tr.tertiary.calls.Load())

	entry, ok := cache.Get("dog")
	require.True(t, ok)
	assert.Equal(t, got, entry.Data)
	assert.Equal(t, clock.Now(), entry.StoredAt)
}

func TestResolveFallsThroughInOrder(t *testing.T) {
	var order []string
	var mu sync.Mutex
	record := func(name string, answer func(string) SearchResult) func(string) SearchResult {
		return func(term string) SearchResult {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return answer(term)
		}
	}
	tr := newTrio(
		record("primary", erroring),
		record("secondary", emptyResult),
		record("tertiary", returning(2, SourcePixabay)),
	)
	c := NewCascade(newMapCache(), tr.list())

	got := c.Resolve(context.Background(), "tree")

	require.Len(t, got, 2)
	assert.Equal(t, SourcePixabay, got[0].Source)
	assert.Equal(t, []string{"primary", "secondary", "tertiary"}, order)
}

func TestResolveAllEmptyForAnyReason(t *testing.T) {
	tr := newTrio(erroring, unconfigured, emptyResult)
	c := NewCascade(newMapCache(), tr.list())

	got := c.Resolve(context.Background(), "Sky Blue")

	assert.Equal(t, GeneratePlaceholders("Sky Blue"), got)
	assert.EqualValues(t, 3, tr.total())
}

func TestResolveCacheHitIsCaseInsensitive(t *testing.T) {
	tr := newTrio(returning(3, SourceGoogle), emptyResult, emptyResult)
	clock := newFakeClock()
	c := NewCascade(newMapCache(), tr.list(), WithClock(clock.Now))

	first := c.Resolve(context.Background(), "dog")
	clock.Advance(10 * time.Minute)
	second := c.Resolve(context.Background(), "DOG")

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, tr.total(), "second lookup must not call providers")
}

func TestResolveExpiredEntryIsReplaced(t *testing.T) {
	tr := newTrio(returning(3, SourceGoogle), emptyResult, emptyResult)
	clock := newFakeClock()
	cache := newMapCache()
	c := NewCascade(cache, tr.list(), WithClock(clock.Now), WithTTL(time.Hour))

	c.Resolve(context.Background(), "dog")
	clock.Advance(time.Hour)
	c.Resolve(context.Background(), "dog")

	assert.EqualValues(t, 2, tr.primary.calls.Load(), "an entry exactly ttl old is stale")
	entry, ok := cache.Get("dog")
	require.True(t, ok)
	assert.Equal(t, clock.Now(), entry.StoredAt)
}

func TestResolveExpiredPlaceholdersRetryProviders(t *testing.T) {
	configured := atomic.Bool{}
	primary := func(term string) SearchResult {
		if !configured.Load() {
			return unconfigured(term)
		}
		return returning(3, SourceGoogle)(term)
	}
	tr := newTrio(primary, unconfigured, unconfigured)
	clock := newFakeClock()
	c := NewCascade(newMapCache(), tr.list(), WithClock(clock.Now))

	first := c.Resolve(context.Background(), "owl")
	assert.Equal(t, SourcePlaceholder, first[0].Source)

	configured.Store(true)
	clock.Advance(59 * time.Minute)
	assert.Equal(t, SourcePlaceholder, c.Resolve(context.Background(), "owl")[0].Source)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, SourceGoogle, c.Resolve(context.Background(), "owl")[0].Source)
}

func TestResolveRecoversFromProviderPanic(t *testing.T) {
	tr := newTrio(func(string) SearchResult { panic("malformed payload") }, returning(3, SourceUnsplash), emptyResult)
	cache := newMapCache()
	var faults []error
	c := NewCascade(cache, tr.list(), WithFaultHook(func(term string, fault error) {
		faults = append(faults, fault)
	}))

	got := c.Resolve(context.Background(), "bird")

	assert.Equal(t, GeneratePlaceholders("bird"), got)
	assert.EqualValues(t, 0, tr.secondary.calls.Load(), "a fault ends the cascade")
	require.Len(t, faults, 1)
	assert.Contains(t, faults[0].Error(), "malformed payload")
	entry, ok := cache.Get("bird")
	require.True(t, ok)
	assert.Equal(t, got, entry.Data)
}

type panickyCache struct{}

func (panickyCache) Get(string) (Entry, bool) { return Entry{}, false }
func (panickyCache) Set(string, Entry)        { panic("disk on fire") }

func TestResolveSurvivesCacheWriteFailure(t *testing.T) {
	tr := newTrio(returning(2, SourceGoogle), emptyResult, emptyResult)
	c := NewCascade(panickyCache{}, tr.list())

	got := c.Resolve(context.Background(), "lamp")

	require.Len(t, got, 2)
	assert.Equal(t, SourceGoogle, got[0].Source)
}

func TestResolveSanitizesProviderOutput(t *testing.T) {
	dupes := func(term string) SearchResult {
		return SearchResult{Images: []ImageResult{
			{ID: "", URL: "a"},
			{ID: "x", URL: "b"},
			{ID: "x", URL: "c"},
		}}
	}
	blanks := func(term string) SearchResult {
		return SearchResult{Images: []ImageResult{{ID: ""}}}
	}
	tr := newTrio(blanks, dupes, emptyResult)
	c := NewCascade(newMapCache(), tr.list())

	got := c.Resolve(context.Background(), "pen")

	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].URL)
	assert.EqualValues(t, 0, tr.tertiary.calls.Load())
}

func TestResolveAlwaysWellFormed(t *testing.T) {
	answers := []func(string) SearchResult{
		unconfigured, erroring, emptyResult,
		returning(1, SourceGoogle), returning(3, SourceGoogle), returning(8, SourceGoogle),
	}
	for i, p := range answers {
		for j, s := range answers {
			tr := newTrio(p, s, emptyResult)
			c := NewCascade(newMapCache(), tr.list())
			t.Run(fmt.Sprintf("%d_%d", i, j), func(t *testing.T) {
				assertWellFormed(t, c.Resolve(context.Background(), "word"))
			})
		}
	}
}

func TestResolveConcurrentMissesWithoutDedupe(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	release := make(chan struct{})
	slow := func(term string) SearchResult {
		<-release
		return returning(3, SourceGoogle)(term)
	}
	tr := newTrio(slow, emptyResult, emptyResult)
	c := NewCascade(newMapCache(), tr.list())

	results := make([][]ImageResult, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Resolve(context.Background(), "cow")
		}()
	}
	require.Eventually(t, func() bool { return tr.primary.calls.Load() == 2 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assertWellFormed(t, r)
	}
	assert.Equal(t, results[0], results[1], "both writers converge on the same data")
}

func TestResolveDedupeSharesOneProviderPass(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	release := make(chan struct{})
	slow := func(term string) SearchResult {
		<-release
		return returning(3, SourceGoogle)(term)
	}
	tr := newTrio(slow, emptyResult, emptyResult)
	c := NewCascade(newMapCache(), tr.list(), WithDedupe(true))

	const callers = 5
	results := make([][]ImageResult, callers)
	var started, wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		started.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			results[i] = c.Resolve(context.Background(), "Horse")
		}()
	}
	started.Wait()
	require.Eventually(t, func() bool { return tr.primary.calls.Load() == 1 }, time.Second, time.Millisecond)
	// give the other callers time to join the in-flight call
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, tr.primary.calls.Load())
	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
}

func TestResolveRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	tr := newTrio(unconfigured, erroring, emptyResult)
	c := NewCascade(newMapCache(), tr.list(), WithMetrics(m))

	c.Resolve(context.Background(), "fox")
	c.Resolve(context.Background(), "fox")

	assert.InDelta(t, 1, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.providerAttempts.WithLabelValues(SourceGoogle, outcomeUnconfigured)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.providerAttempts.WithLabelValues(SourceUnsplash, outcomeError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.providerAttempts.WithLabelValues(SourcePixabay, outcomeEmpty)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.placeholders), 0)
}

func TestGetWordImages(t *testing.T) {
	tr := newTrio(unconfigured, unconfigured, unconfigured)
	c := NewCascade(newMapCache(), tr.list())

	payload := c.GetWordImages(context.Background(), "cat")

	assert.Len(t, payload.Images, 3)
}
