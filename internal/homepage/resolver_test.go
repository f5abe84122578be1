package homepage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/council-registers/internal/search"
	"github.com/jonathan/council-registers/internal/types"
)

type memoryStore struct {
	mu        sync.Mutex
	homepages map[string]string
	upserts   int
	getErr    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{homepages: map[string]string{}}
}

func (s *memoryStore) GetCouncilHomepage(_ context.Context, council string) (*types.CouncilHomepage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	u, ok := s.homepages[council]
	if !ok {
		return nil, nil
	}
	return &types.CouncilHomepage{Council: council, HomepageURL: u, DiscoveredAt: time.Now()}, nil
}

func (s *memoryStore) UpsertCouncilHomepage(_ context.Context, council, homepageURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.homepages[council] = homepageURL
	s.upserts++
	return nil
}

type fakeProvider struct {
	mu      sync.Mutex
	results map[string][]search.Result
	err     error
	queries []string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Search(_ context.Context, query string, _ int) ([]search.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, query)
	if p.err != nil {
		return nil, p.err
	}
	return p.results[query], nil
}

func TestResolve_CachedMakesNoSearch(t *testing.T) {
	store := newMemoryStore()
	store.homepages["Sampleton"] = "https://www.sampleton.gov.uk"
	provider := &fakeProvider{}

	url, err := NewResolver(store, provider, nil).Resolve(context.Background(), "Sampleton", false)
	require.NoError(t, err)
	assert.Equal(t, "https://www.sampleton.gov.uk", url)
	assert.Empty(t, provider.queries)
}

func TestResolve_SearchesAndPersists(t *testing.T) {
	store := newMemoryStore()
	provider := &fakeProvider{results: map[string][]search.Result{
		"Sampleton council official website": {
			{URL: "https://en.wikipedia.org/wiki/Sampleton"},
			{URL: "https://www.gov.uk/find-local-council"},
			{URL: "https://www.sampleton.gov.uk/council-and-democracy/councillors"},
		},
	}}

	url, err := NewResolver(store, provider, nil).Resolve(context.Background(), "Sampleton", false)
	require.NoError(t, err)
	assert.Equal(t, "https://www.sampleton.gov.uk", url)
	assert.Equal(t, "https://www.sampleton.gov.uk", store.homepages["Sampleton"])
	assert.Equal(t, []string{"Sampleton council official website"}, provider.queries)
}

func TestResolve_FallsBackToSecondQuery(t *testing.T) {
	store := newMemoryStore()
	provider := &fakeProvider{results: map[string][]search.Result{
		"Sampleton Council": {{URL: "https://sampleton.gov.uk/"}},
	}}

	url, err := NewResolver(store, provider, nil).Resolve(context.Background(), "Sampleton Council", false)
	require.NoError(t, err)
	assert.Equal(t, "https://sampleton.gov.uk", url)
	assert.Equal(t, []string{"Sampleton Council official website", "Sampleton Council"}, provider.queries)
}

func TestResolve_RefreshBypassesCache(t *testing.T) {
	store := newMemoryStore()
	store.homepages["Sampleton"] = "https://old.sampleton.gov.uk"
	provider := &fakeProvider{results: map[string][]search.Result{
		"Sampleton council official website": {{URL: "https://www.sampleton.gov.uk/"}},
	}}

	url, err := NewResolver(store, provider, nil).Resolve(context.Background(), "Sampleton", true)
	require.NoError(t, err)
	assert.Equal(t, "https://www.sampleton.gov.uk", url)
	assert.Equal(t, "https://www.sampleton.gov.uk", store.homepages["Sampleton"])
	assert.Len(t, provider.queries, 1)
}

func TestResolve_NoCandidate(t *testing.T) {
	store := newMemoryStore()
	provider := &fakeProvider{results: map[string][]search.Result{
		"Sampleton council official website": {{URL: "https://www.facebook.com/sampleton"}},
	}}

	_, err := NewResolver(store, provider, nil).Resolve(context.Background(), "Sampleton", false)
	require.Error(t, err)

	var resolveErr *ResolveError
	require.ErrorAs(t, err, &resolveErr)
	assert.Equal(t, KindNoHomepage, resolveErr.Kind)
	assert.Equal(t, "Sampleton", resolveErr.Council)
	assert.Len(t, resolveErr.Queries, 2)
	assert.Zero(t, store.upserts)
	assert.True(t, IsNoHomepage(err))
}

func TestResolve_StoreFailureIsNotNoHomepage(t *testing.T) {
	cause := errors.New("database is locked")
	store := newMemoryStore()
	store.getErr = cause
	provider := &fakeProvider{results: map[string][]search.Result{
		"Sampleton council official website": {{URL: "https://www.sampleton.gov.uk/"}},
	}}

	_, err := NewResolver(store, provider, nil).Resolve(context.Background(), "Sampleton", false)

	var resolveErr *ResolveError
	require.ErrorAs(t, err, &resolveErr)
	assert.Equal(t, KindStore, resolveErr.Kind)
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsNoHomepage(err))
	assert.Empty(t, provider.queries, "no search when the cache cannot be read")
}

func TestResolve_SearchFailureWrapsCause(t *testing.T) {
	cause := errors.New("quota exceeded")
	provider := &fakeProvider{err: cause}

	_, err := NewResolver(newMemoryStore(), provider, nil).Resolve(context.Background(), "Sampleton", false)

	var resolveErr *ResolveError
	require.ErrorAs(t, err, &resolveErr)
	assert.ErrorIs(t, err, cause)
}

type firstResult struct{}

func (firstResult) Select(_ string, results []search.Result) (string, bool) {
	if len(results) == 0 {
		return "", false
	}
	return results[0].URL, true
}

func TestResolve_CustomSelector(t *testing.T) {
	provider := &fakeProvider{results: map[string][]search.Result{
		"Sampleton council official website": {{URL: "https://anything.example"}},
	}}

	url, err := NewResolver(newMemoryStore(), provider, &Options{Selector: firstResult{}}).
		Resolve(context.Background(), "Sampleton", false)
	require.NoError(t, err)
	assert.Equal(t, "https://anything.example", url)
}

func TestQueries(t *testing.T) {
	assert.Equal(t, []string{"Sampleton council official website", "Sampleton council"}, Queries("Sampleton"))
	assert.Equal(t, []string{"Sampleton Borough Council official website", "Sampleton Borough Council"}, Queries(" Sampleton Borough Council "))
}
