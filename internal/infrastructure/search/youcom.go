package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"MeetingPrep/internal/config"
	"MeetingPrep/internal/domain"
	"MeetingPrep/internal/ports"
)

// MaxSnippetLength caps stored snippet text, in characters.
const MaxSnippetLength = 500

// YouClient implements ports.SearchProvider on top of the You.com search API.
type YouClient struct {
	endpoint string
	apiKey   string
	client   *resty.Client
}

var _ ports.SearchProvider = (*YouClient)(nil)

// NewYouClient builds a client from configuration. The per-query deadline is
// driven by the caller's context; the client timeout is only a backstop.
func NewYouClient(cfg config.SearchConfig) *YouClient {
	client := resty.New().
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "MeetingPrep/1.0")
	if cfg.QueryTimeout > 0 {
		client.SetTimeout(2 * cfg.QueryTimeout)
	}

	return &YouClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   client,
	}
}

// Search runs a single query; failures are returned as *domain.SearchError.
func (c *YouClient) Search(ctx context.Context, query string, count int, freshness string) ([]domain.SearchResult, error) {
	if c == nil || c.apiKey == "" || c.endpoint == "" {
		return nil, &domain.SearchError{Kind: domain.SearchNotConfigured}
	}

	params := map[string]string{
		"query": query,
		"count": strconv.Itoa(count),
	}
	if freshness != "" {
		params["freshness"] = freshness
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("X-API-Key", c.apiKey).
		SetQueryParams(params).
		Get(c.endpoint)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return nil, &domain.SearchError{Kind: domain.SearchAuth, StatusCode: code}
	case code == http.StatusTooManyRequests:
		return nil, &domain.SearchError{Kind: domain.SearchRateLimited, StatusCode: code}
	case code >= http.StatusBadRequest:
		return nil, &domain.SearchError{
			Kind:       domain.SearchTransport,
			StatusCode: code,
			Err:        fmt.Errorf("search api returned %s", resp.Status()),
		}
	}

	results, err := ParseResponse(resp.Body(), count)
	if err != nil {
		return nil, &domain.SearchError{Kind: domain.SearchTransport, Err: err}
	}
	return results, nil
}

func classifyTransport(ctx context.Context, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.SearchError{Kind: domain.SearchTimeout, Err: err}
	}
	return &domain.SearchError{Kind: domain.SearchTransport, Err: err}
}

type hit struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Snippet     string   `json:"snippet"`
	Snippets    []string `json:"snippets"`
	PageAge     string   `json:"page_age"`
	Age         string   `json:"age"`
}

type sections struct {
	Web  []hit `json:"web"`
	News []hit `json:"news"`
}

type response struct {
	Results *sections `json:"results"`
	sections
}

// ParseResponse merges web hits before news hits, keeps at most maxResults
// and truncates snippets to MaxSnippetLength characters.
func ParseResponse(body []byte, maxResults int) ([]domain.SearchResult, error) {
	var raw response
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	wrapper := raw.sections
	if raw.Results != nil {
		wrapper = *raw.Results
	}

	items := make([]domain.SearchResult, 0, maxResults)
	for _, section := range [][]hit{wrapper.Web, wrapper.News} {
		for _, h := range section {
			if len(items) >= maxResults {
				return items, nil
			}
			items = append(items, domain.SearchResult{
				Title:   h.Title,
				URL:     h.URL,
				Snippet: truncate(cleanSnippet(h.snippetText()), MaxSnippetLength),
				Age:     firstNonEmpty(h.PageAge, h.Age),
			})
		}
	}
	return items, nil
}

func (h hit) snippetText() string {
	if text := firstNonEmpty(h.Description, h.Snippet); text != "" {
		return text
	}
	if len(h.Snippets) > 0 {
		return h.Snippets[0]
	}
	return ""
}

// cleanSnippet strips inline markup such as <strong> highlights.
func cleanSnippet(text string) string {
	if !strings.ContainsAny(text, "<&") {
		return text
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return text
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
