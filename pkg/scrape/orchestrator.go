package scrape

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/entrhq/pricescout/pkg/browser"
	"github.com/entrhq/pricescout/pkg/config"
	"github.com/entrhq/pricescout/pkg/logging"
)

// SessionProvider yields the shared browser session. Satisfied by
// *browser.Manager.
type SessionProvider interface {
	Acquire(ctx context.Context) (*browser.Session, error)
}

// Orchestrator fans a query out to the requested sources concurrently over
// the shared session and joins the results into one flat listing collection.
type Orchestrator struct {
	sessions SessionProvider
	cfg      config.ScrapeConfig
	log      *logging.Logger

	// runSource is the per-source extraction, replaceable in tests.
	runSource func(ctx context.Context, session *browser.Session, adapter *Adapter, query Query) ([]RawListing, error)
}

// NewOrchestrator creates a scrape orchestrator over the given session
// provider.
func NewOrchestrator(sessions SessionProvider, cfg config.ScrapeConfig, log *logging.Logger) *Orchestrator {
	o := &Orchestrator{
		sessions: sessions,
		cfg:      cfg,
		log:      log,
	}
	o.runSource = func(ctx context.Context, session *browser.Session, adapter *Adapter, query Query) ([]RawListing, error) {
		return extractSource(ctx, session, adapter, query, o.cfg, o.log)
	}
	return o
}

// Scrape extracts competitor listings for the query from every requested
// source. All sources run concurrently against the one shared session; each
// extractor owns its own page, so there is no cross-source mutable state.
//
// A session-acquisition failure or an unknown source aborts the whole call.
// A single source's extraction failure degrades to an empty result set for
// that source only. Results are joined after every source completes, each
// source's listings carrying the summary over that source's own surviving
// set; summaries are never pooled across sources.
func (o *Orchestrator) Scrape(ctx context.Context, sources []string, rawQuery string, exclude []string) ([]AggregatedListing, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources requested")
	}

	adapters := make([]*Adapter, len(sources))
	for i, source := range sources {
		adapter, ok := Lookup(source)
		if !ok {
			return nil, fmt.Errorf("unknown source %q", source)
		}
		adapters[i] = adapter
	}

	session, err := o.sessions.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire browser session: %w", err)
	}

	query := ParseQuery(rawQuery)

	perSource := make([][]AggregatedListing, len(adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, adapter := range adapters {
		i, adapter := i, adapter
		g.Go(func() error {
			listings, err := o.runSource(gctx, session, adapter, query)
			if err != nil {
				// Degrade: the sibling sources still report.
				o.log.Warnf("%s: extraction failed: %v", adapter.Source, err)
				return nil
			}

			kept := FilterListings(listings, query.Model, exclude)
			summary := Summarize(listingPrices(kept))

			aggregated := make([]AggregatedListing, len(kept))
			for j, listing := range kept {
				aggregated[j] = AggregatedListing{
					Source:  adapter.Source,
					Title:   listing.Title,
					Price:   listing.Price,
					Store:   listing.Store,
					URL:     listing.URL,
					Summary: summary,
				}
			}
			perSource[i] = aggregated
			return nil
		})
	}

	// Join only after every source task completes; no partial early return.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []AggregatedListing
	for _, listings := range perSource {
		all = append(all, listings...)
	}

	o.log.Infof("scraped %d listings for %q across %d sources", len(all), query.SearchString, len(sources))
	return all, nil
}
