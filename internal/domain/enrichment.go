package domain

import (
	"errors"
	"fmt"
)

// SearchResult is one ranked hit returned by the search collaborator.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Age     string `json:"age,omitempty"`
}

// SearchOutcome is the result of a single enrichment query. Error is set
// only when the query failed, in which case Results is empty.
type SearchOutcome struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Error   *string        `json:"error"`
}

// Failed reports whether the query produced an error.
func (o SearchOutcome) Failed() bool {
	return o.Error != nil
}

// EnrichmentResult holds the three named enrichment slots.
type EnrichmentResult struct {
	CompanyNews         SearchOutcome `json:"company_news"`
	RolePains           SearchOutcome `json:"role_pains"`
	CompetitorLandscape SearchOutcome `json:"competitor_landscape"`
}

// SearchErrorKind classifies search failures for back-off decisions.
type SearchErrorKind string

const (
	SearchNotConfigured SearchErrorKind = "not_configured"
	SearchAuth          SearchErrorKind = "auth"
	SearchRateLimited   SearchErrorKind = "rate_limited"
	SearchTimeout       SearchErrorKind = "timeout"
	SearchTransport     SearchErrorKind = "transport"
)

// SearchError is returned by search providers.
type SearchError struct {
	Kind       SearchErrorKind
	StatusCode int
	Err        error
}

func (e *SearchError) Error() string {
	switch e.Kind {
	case SearchNotConfigured:
		return "search provider not configured"
	case SearchAuth:
		return fmt.Sprintf("Authentication error (%d)", e.StatusCode)
	case SearchRateLimited:
		return "Rate limited by search API"
	case SearchTimeout:
		return "Search request timed out"
	default:
		if e.StatusCode != 0 {
			return fmt.Sprintf("Search API returned status %d", e.StatusCode)
		}
		return fmt.Sprintf("Connection error: %v", e.Err)
	}
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// SearchErrorKindOf extracts the kind of err, defaulting to transport.
func SearchErrorKindOf(err error) SearchErrorKind {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Kind
	}
	return SearchTransport
}
