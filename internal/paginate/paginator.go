// Package paginate drives the page-by-page fetch of the habits
// database. The loop is strictly sequential: the remote cursor is only
// valid relative to the prior response, so each page must complete and
// its checkpoint must be written before the next is requested.
package paginate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/GengGeng026/habitboard/internal/model"
	"github.com/GengGeng026/habitboard/internal/notion"
	"github.com/GengGeng026/habitboard/internal/progress"
	"github.com/GengGeng026/habitboard/internal/retry"
)

// Fetcher fetches one page of records from the remote database
type Fetcher interface {
	QueryDatabase(ctx context.Context, pageSize int, startCursor string) (*notion.QueryResponse, error)
}

// Result is the outcome of one paginator run. Records holds only the
// records fetched during this run; the checkpoint carries ids from
// prior runs.
type Result struct {
	Records        []model.Record
	TotalRetrieved int
	// Complete is false when the run stopped early (retries exhausted)
	// with resumable progress checkpointed.
	Complete bool
}

// Paginator walks the cursor-paginated database, deduplicates records
// across runs, and checkpoints after every merged page.
type Paginator struct {
	fetcher Fetcher
	exec    *retry.Executor
	store   *progress.Store
	limiter *rate.Limiter
	cfg     model.FetchConfig
	logger  *slog.Logger

	// sleep handles the soft-threshold pause; injectable for tests
	sleep func(context.Context, time.Duration) error
}

// New creates a paginator. The limiter paces successful pages
// independently of the backoff policy, to stay under the remote
// steady-state rate limit.
func New(fetcher Fetcher, exec *retry.Executor, store *progress.Store, cfg model.FetchConfig, logger *slog.Logger) *Paginator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 5
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 600
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Paginator{
		fetcher: fetcher,
		exec:    exec,
		store:   store,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// SetSleep overrides the soft-threshold pause for tests
func (p *Paginator) SetSleep(sleep func(context.Context, time.Duration) error) {
	p.sleep = sleep
}

// Run executes one fetch session, resuming from the stored checkpoint
// when one exists. Every successfully merged page is persisted before
// the next page is requested, bounding crash loss to one in-flight
// page.
func (p *Paginator) Run(ctx context.Context) (*Result, error) {
	cp, err := p.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	seen := make(map[string]bool, len(cp.QueriedPageIDs))
	seenOrder := make([]string, 0, len(cp.QueriedPageIDs))
	for _, id := range cp.QueriedPageIDs {
		if !seen[id] {
			seen[id] = true
			seenOrder = append(seenOrder, id)
		}
	}

	cursor := cp.StartCursor
	retrieved := cp.TotalRetrieved
	if retrieved > 0 {
		p.logger.Info("resuming from checkpoint", "retrieved", retrieved, "has_cursor", cursor != "")
	}

	var records []model.Record
	stagnantStreak := 0
	pausedAtThreshold := false

	for retrieved < p.cfg.PageLimit {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		startCursor := cursor
		resp, err := retry.Do(ctx, p.exec, "query database", func(ctx context.Context) (*notion.QueryResponse, error) {
			return p.fetcher.QueryDatabase(ctx, p.cfg.PageSize, startCursor)
		})
		if err != nil {
			if errors.Is(err, retry.ErrRetriesExhausted) {
				p.logger.Error("stopping fetch with partial progress", "retrieved", retrieved, "error", err)
				return &Result{Records: records, TotalRetrieved: retrieved, Complete: false}, nil
			}
			return nil, err
		}

		fresh := make([]model.Record, 0, len(resp.Records))
		for _, rec := range resp.Records {
			if !seen[rec.ID] {
				fresh = append(fresh, rec)
			}
		}

		if len(fresh) == 0 {
			stagnantStreak++
			p.logger.Warn("no new records in page", "retrieved", retrieved, "streak", stagnantStreak)
			if resp.NextCursor == "" || stagnantStreak >= 2 {
				break
			}
			cursor = resp.NextCursor
			continue
		}
		stagnantStreak = 0

		// Land exactly on the page limit rather than overshooting
		if remaining := p.cfg.PageLimit - retrieved; len(fresh) > remaining {
			fresh = fresh[:remaining]
		}

		for _, rec := range fresh {
			seen[rec.ID] = true
			seenOrder = append(seenOrder, rec.ID)
		}
		records = append(records, fresh...)
		retrieved += len(fresh)
		cursor = resp.NextCursor

		if err := p.store.Save(progress.Checkpoint{
			StartCursor:    cursor,
			TotalRetrieved: retrieved,
			QueriedPageIDs: seenOrder,
		}); err != nil {
			return nil, fmt.Errorf("save checkpoint: %w", err)
		}
		p.logger.Info("page merged", "new", len(fresh), "retrieved", retrieved)

		if !resp.HasMore || cursor == "" {
			p.logger.Info("no more pages to retrieve")
			break
		}
		if retrieved >= p.cfg.PageLimit {
			p.logger.Info("reached page limit", "limit", p.cfg.PageLimit)
			break
		}

		if !pausedAtThreshold && p.cfg.SoftThreshold > 0 && retrieved >= p.cfg.SoftThreshold {
			pausedAtThreshold = true
			p.logger.Info("soft threshold reached, pausing before continuing",
				"retrieved", retrieved, "pause", p.cfg.SoftThresholdPause)
			if err := p.sleep(ctx, p.cfg.SoftThresholdPause); err != nil {
				return nil, err
			}
		}
	}

	p.logger.Info("fetch finished", "retrieved", retrieved, "new_this_run", len(records))
	return &Result{Records: records, TotalRetrieved: retrieved, Complete: true}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
