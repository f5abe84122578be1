package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestSearX_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "sampleton council", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"url":"https://www.sampleton.gov.uk/","title":"Sampleton Council"},
			{"url":"https://www.sampleton.gov.uk/","title":"duplicate"},
			{"url":"","title":"empty"},
			{"url":"https://en.wikipedia.org/wiki/Sampleton","title":"Sampleton - Wikipedia"},
			{"url":"https://news.example.com/sampleton","title":"News"}
		]}`))
	}))
	defer server.Close()

	provider := NewSearX(server.URL+"/", 5*time.Second)
	results, err := provider.Search(context.Background(), "sampleton council", 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "https://www.sampleton.gov.uk/", results[0].URL)
	assert.Equal(t, "Sampleton Council", results[0].Title)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Sampleton", results[1].URL)
	assert.Equal(t, "searxng", provider.Name())
}

func TestSearX_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewSearX(server.URL, time.Second).Search(context.Background(), "q", 5)
	require.Error(t, err)

	var searchErr *Error
	require.ErrorAs(t, err, &searchErr)
	assert.Equal(t, "searxng", searchErr.Provider)
	assert.Contains(t, err.Error(), "429")
}

func TestGoogle_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cx-123", r.URL.Query().Get("cx"))
		assert.Equal(t, "sampleton council official website", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("num"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"link":"https://www.sampleton.gov.uk/","title":"Sampleton Council"},
			{"link":"https://www.facebook.com/sampleton","title":"Facebook"}
		]}`))
	}))
	defer server.Close()

	provider, err := NewGoogle(context.Background(), "key", "cx-123",
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)

	results, err := provider.Search(context.Background(), "sampleton council official website", 3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, Result{URL: "https://www.sampleton.gov.uk/", Title: "Sampleton Council"}, results[0])
}

func TestNone(t *testing.T) {
	_, err := None{}.Search(context.Background(), "anything", 5)
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestDedupe(t *testing.T) {
	in := []Result{{URL: " a "}, {URL: "a"}, {URL: "b"}, {URL: "c"}}
	assert.Equal(t, []Result{{URL: "a"}, {URL: "b"}}, dedupe(in, 2))
	assert.Len(t, dedupe(in, 0), 3)
}
