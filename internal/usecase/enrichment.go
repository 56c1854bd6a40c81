package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"MeetingPrep/internal/domain"
	"MeetingPrep/internal/ports"
)

const (
	defaultResultCount  = 5
	defaultQueryTimeout = 15 * time.Second

	freshnessMonth = "month"
	freshnessYear  = "year"
)

// Enricher fans the three enrichment queries of one meeting out to the search provider.
type Enricher struct {
	search  ports.SearchProvider
	count   int
	timeout time.Duration
	logger  *slog.Logger
}

// NewEnricher builds the fan-out stage. Non-positive count or timeout fall back to defaults.
func NewEnricher(search ports.SearchProvider, count int, timeout time.Duration, logger *slog.Logger) *Enricher {
	if count <= 0 {
		count = defaultResultCount
	}
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		search:  search,
		count:   count,
		timeout: timeout,
		logger:  logger.With("component", "enrichment"),
	}
}

// Enrich runs the company-news, role-pains and competitor queries concurrently.
// Each query has its own deadline and a failure never affects its siblings.
func (e *Enricher) Enrich(ctx context.Context, company, role string, attendees []domain.Attendee, profile domain.SteeringProfile) domain.EnrichmentResult {
	ctx, span := tracer.Start(ctx, "enrichment.fanout")
	defer span.End()
	span.SetAttributes(attribute.String("meeting.company", company), attribute.Int("meeting.attendees", len(attendees)))

	var (
		result domain.EnrichmentResult
		wg     sync.WaitGroup
	)

	jobs := []struct {
		query     string
		freshness string
		dest      *domain.SearchOutcome
	}{
		{CompanyNewsQuery(company, profile.ProductFocus), freshnessMonth, &result.CompanyNews},
		{RolePainsQuery(role, company, profile.ICP, profile.KeyPains), freshnessYear, &result.RolePains},
		{CompetitorQuery(company, profile.CompetitorList, profile.ProductFocus), freshnessMonth, &result.CompetitorLandscape},
	}

	wg.Add(len(jobs))
	for _, job := range jobs {
		go func() {
			defer wg.Done()
			*job.dest = e.run(ctx, job.query, job.freshness)
		}()
	}
	wg.Wait()

	return result
}

func (e *Enricher) run(ctx context.Context, query, freshness string) domain.SearchOutcome {
	ctx, span := tracer.Start(ctx, "enrichment.query")
	defer span.End()
	span.SetAttributes(attribute.String("search.query", query), attribute.String("search.freshness", freshness))

	outcome := domain.SearchOutcome{Query: query, Results: []domain.SearchResult{}}

	var err error
	if e.search == nil {
		err = &domain.SearchError{Kind: domain.SearchNotConfigured}
	} else {
		queryCtx, cancel := context.WithTimeout(ctx, e.timeout)
		var results []domain.SearchResult
		results, err = e.search.Search(queryCtx, query, e.count, freshness)
		cancel()
		if err == nil {
			if results != nil {
				outcome.Results = results
			}
			span.SetAttributes(attribute.Int("search.results", len(outcome.Results)))
			return outcome
		}
	}

	message := err.Error()
	outcome.Error = &message
	span.SetStatus(codes.Error, message)
	e.logger.Warn("enrichment query failed",
		"query", query,
		"kind", string(domain.SearchErrorKindOf(err)),
		"error", message)
	return outcome
}

// CompanyNewsQuery targets recent announcements from the company.
func CompanyNewsQuery(company, productFocus string) string {
	return collapse(fmt.Sprintf("%s latest news announcements %s", company, productFocus))
}

// RolePainsQuery targets the attendee role's pains in the ICP context.
func RolePainsQuery(role, company, icp string, keyPains []string) string {
	pains := strings.Join(keyPains[:min(2, len(keyPains))], " ")
	return collapse(fmt.Sprintf("%s pain points challenges %s %s %s", role, company, icp, pains))
}

// CompetitorQuery compares the first three configured competitors, or falls
// back to a generic competitor search for the company.
func CompetitorQuery(company string, competitors []string, productFocus string) string {
	if len(competitors) == 0 {
		return collapse(company + " competitors")
	}
	names := strings.Join(competitors[:min(3, len(competitors))], " ")
	return collapse(fmt.Sprintf("%s comparison %s", names, productFocus))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
