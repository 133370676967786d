// Package aggregate turns the fetched record set into category totals.
// Category names live on separate parent pages, so resolution is a
// remote lookup; lookups for distinct parents fan out concurrently and
// are joined before summing.
package aggregate

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/GengGeng026/habitboard/internal/model"
)

const (
	// UncategorizedBucket collects records with no parent reference
	// and no usable title of their own.
	UncategorizedBucket = "Uncategorized"
	// UnknownBucket collects records whose parent could not be
	// resolved or whose parent fails the category filter.
	UnknownBucket = "Unknown"
)

// PageResolver looks up a single page by id
type PageResolver interface {
	GetPage(ctx context.Context, pageID string) (model.Record, error)
}

// Aggregator sums record measures into resolved category buckets
type Aggregator struct {
	resolver PageResolver
	names    *gocache.Cache
	cfg      model.AggregateConfig
	logger   *slog.Logger
}

// New creates an aggregator. Resolved names are memoized so repeated
// parents across aggregation passes cost a single lookup.
func New(resolver PageResolver, cfg model.AggregateConfig, logger *slog.Logger) *Aggregator {
	if cfg.MaxLookups <= 0 {
		cfg.MaxLookups = 10
	}
	ttl := cfg.NameCacheTTL
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		resolver: resolver,
		names:    gocache.New(ttl, 2*ttl),
		cfg:      cfg,
		logger:   logger,
	}
}

// Aggregate produces the category table: one row per category, totals
// summed from record measures, sorted by total descending with ties in
// first-encountered order.
func (a *Aggregator) Aggregate(ctx context.Context, records []model.Record) (model.Table, error) {
	resolved, err := a.resolveParents(ctx, records)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]float64)
	var order []string

	add := func(bucket string, measure float64) {
		if _, ok := totals[bucket]; !ok {
			order = append(order, bucket)
		}
		totals[bucket] += measure
	}

	for _, rec := range records {
		switch {
		case rec.ParentID != "":
			name, ok := resolved[rec.ParentID]
			if !ok || name == "" {
				name = UnknownBucket
			}
			add(name, rec.Measure)
		case rec.Title != "":
			// Top-level habits are their own category
			add(rec.Title, rec.Measure)
		default:
			add(UncategorizedBucket, rec.Measure)
		}
	}

	table := make(model.Table, 0, len(order))
	for _, name := range order {
		table = append(table, model.Row{Category: name, Total: totals[name]})
	}
	sort.SliceStable(table, func(i, j int) bool {
		return table[i].Total > table[j].Total
	})
	return table, nil
}

// resolveParents looks up every distinct parent id concurrently,
// bounded by MaxLookups. Failed lookups map to the empty string and
// land in the Unknown bucket; they never abort the pass.
func (a *Aggregator) resolveParents(ctx context.Context, records []model.Record) (map[string]string, error) {
	distinct := make([]string, 0)
	seen := make(map[string]bool)
	for _, rec := range records {
		if rec.ParentID != "" && !seen[rec.ParentID] {
			seen[rec.ParentID] = true
			distinct = append(distinct, rec.ParentID)
		}
	}
	if len(distinct) == 0 {
		return map[string]string{}, nil
	}

	resolved := make(map[string]string, len(distinct))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.MaxLookups)

	for _, id := range distinct {
		id := id
		g.Go(func() error {
			name := a.resolveName(gctx, id)
			mu.Lock()
			resolved[id] = name
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}

// resolveName returns the category name for a parent page id, or the
// empty string when the lookup fails or the title is filtered out.
func (a *Aggregator) resolveName(ctx context.Context, pageID string) string {
	if cached, ok := a.names.Get(pageID); ok {
		return cached.(string)
	}

	page, err := a.resolver.GetPage(ctx, pageID)
	if err != nil {
		a.logger.Warn("category lookup failed", "page_id", pageID, "error", err)
		return ""
	}

	name := page.Title
	if a.cfg.CategoryMarker != "" {
		if !strings.Contains(name, a.cfg.CategoryMarker) {
			a.logger.Warn("parent page is not a category", "page_id", pageID, "title", name)
			name = ""
		} else {
			name = strings.TrimSpace(strings.ReplaceAll(name, a.cfg.CategoryMarker, ""))
		}
	}

	a.names.Set(pageID, name, gocache.DefaultExpiration)
	return name
}
