package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MeetingPrep/internal/config"
	"MeetingPrep/internal/domain"
)

func newTestClient(url string) *YouClient {
	return NewYouClient(config.SearchConfig{
		Endpoint:     url,
		APIKey:       "test-key",
		ResultCount:  5,
		QueryTimeout: time.Second,
	})
}

func TestSearchMergesWebBeforeNewsAndTruncates(t *testing.T) {
	long := strings.Repeat("a", 800)
	var gotKey, gotQuery, gotFreshness string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotQuery = r.URL.Query().Get("query")
		gotFreshness = r.URL.Query().Get("freshness")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":{
			"web":[{"title":"W1","url":"https://w1","description":"` + long + `","page_age":"2d"},
			       {"title":"W2","url":"https://w2","snippets":["<strong>Acme</strong> raises"]}],
			"news":[{"title":"N1","url":"https://n1","description":"news","age":"1h"},
			        {"title":"N2","url":"https://n2"}]}}`))
	}))
	defer server.Close()

	results, err := newTestClient(server.URL).Search(context.Background(), "acme news", 3, "month")
	require.NoError(t, err)

	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "acme news", gotQuery)
	assert.Equal(t, "month", gotFreshness)

	require.Len(t, results, 3)
	assert.Equal(t, []string{"W1", "W2", "N1"}, []string{results[0].Title, results[1].Title, results[2].Title})
	assert.Equal(t, MaxSnippetLength, utf8.RuneCountInString(results[0].Snippet))
	assert.Equal(t, "2d", results[0].Age)
	assert.Equal(t, "Acme raises", results[1].Snippet)
	assert.Equal(t, "1h", results[2].Age)
}

func TestParseResponseWithoutWrapper(t *testing.T) {
	results, err := ParseResponse([]byte(`{"web":[{"title":"A","url":"u","snippet":"s"}]}`), 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "s", results[0].Snippet)
}

func TestSearchClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		status  int
		kind    domain.SearchErrorKind
		message string
	}{
		{http.StatusUnauthorized, domain.SearchAuth, "Authentication error (401)"},
		{http.StatusTooManyRequests, domain.SearchRateLimited, "Rate limited by search API"},
		{http.StatusInternalServerError, domain.SearchTransport, "Search API returned status 500"},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		_, err := newTestClient(server.URL).Search(context.Background(), "q", 5, "")
		server.Close()

		require.Error(t, err)
		assert.Equal(t, tc.kind, domain.SearchErrorKindOf(err))
		assert.Equal(t, tc.message, err.Error())
	}
}

func TestSearchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(server.URL).Search(ctx, "q", 5, "")
	require.Error(t, err)
	assert.Equal(t, domain.SearchTimeout, domain.SearchErrorKindOf(err))
	assert.Equal(t, "Search request timed out", err.Error())
}

func TestSearchWithoutKeyIsNotConfigured(t *testing.T) {
	client := NewYouClient(config.SearchConfig{Endpoint: "http://127.0.0.1:1"})
	_, err := client.Search(context.Background(), "q", 5, "")
	assert.Equal(t, domain.SearchNotConfigured, domain.SearchErrorKindOf(err))
}
