package paginate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/GengGeng026/habitboard/internal/model"
	"github.com/GengGeng026/habitboard/internal/notion"
	"github.com/GengGeng026/habitboard/internal/progress"
	"github.com/GengGeng026/habitboard/internal/retry"
)

func testFetchConfig() model.FetchConfig {
	return model.FetchConfig{
		PageSize:          5,
		PageLimit:         600,
		RequestsPerSecond: 1e6, // no pacing in tests
	}
}

func testExecutor(maxAttempts int) *retry.Executor {
	e := retry.NewExecutor(model.RetryConfig{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
	}, slog.Default())
	e.SetSleep(func(ctx context.Context, d time.Duration) error { return nil })
	return e
}

func newTestStore(t *testing.T) *progress.Store {
	t.Helper()
	return progress.NewStore(filepath.Join(t.TempDir(), "progress.json"))
}

func records(ids ...string) []model.Record {
	recs := make([]model.Record, len(ids))
	for i, id := range ids {
		recs[i] = model.Record{ID: id, Title: "habit " + id, Measure: 1}
	}
	return recs
}

// scriptedFetcher maps start cursors to canned responses
type scriptedFetcher struct {
	responses map[string]*notion.QueryResponse
	calls     int
}

func (f *scriptedFetcher) QueryDatabase(ctx context.Context, pageSize int, startCursor string) (*notion.QueryResponse, error) {
	f.calls++
	resp, ok := f.responses[startCursor]
	if !ok {
		return nil, fmt.Errorf("no scripted response for cursor %q", startCursor)
	}
	return resp, nil
}

// failAfterFetcher delegates for the first n calls, then always errors
type failAfterFetcher struct {
	inner Fetcher
	n     int
	calls int
}

func (f *failAfterFetcher) QueryDatabase(ctx context.Context, pageSize int, startCursor string) (*notion.QueryResponse, error) {
	f.calls++
	if f.calls > f.n {
		return nil, errors.New("connection refused")
	}
	return f.inner.QueryDatabase(ctx, pageSize, startCursor)
}

// infiniteFetcher yields unlimited unique records, five per page
type infiniteFetcher struct {
	next int
}

func (f *infiniteFetcher) QueryDatabase(ctx context.Context, pageSize int, startCursor string) (*notion.QueryResponse, error) {
	recs := make([]model.Record, pageSize)
	for i := range recs {
		recs[i] = model.Record{ID: fmt.Sprintf("rec-%06d", f.next), Measure: 1}
		f.next++
	}
	return &notion.QueryResponse{
		Records:    recs,
		HasMore:    true,
		NextCursor: fmt.Sprintf("cursor-%d", f.next),
	}, nil
}

// sixPages builds a scripted dataset of 30 unique records
func sixPages() *scriptedFetcher {
	f := &scriptedFetcher{responses: map[string]*notion.QueryResponse{}}
	cursor := ""
	for page := 0; page < 6; page++ {
		ids := make([]string, 5)
		for i := range ids {
			ids[i] = fmt.Sprintf("p%d-r%d", page, i)
		}
		next := fmt.Sprintf("c%d", page+1)
		hasMore := true
		if page == 5 {
			next = ""
			hasMore = false
		}
		f.responses[cursor] = &notion.QueryResponse{
			Records:    records(ids...),
			HasMore:    hasMore,
			NextCursor: next,
		}
		cursor = next
	}
	return f
}

func TestPaginator_FetchesAllPages(t *testing.T) {
	store := newTestStore(t)
	p := New(sixPages(), testExecutor(3), store, testFetchConfig(), slog.Default())
	p.SetSleep(func(ctx context.Context, d time.Duration) error { return nil })

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Complete {
		t.Error("expected complete run")
	}
	if len(result.Records) != 30 {
		t.Errorf("expected 30 records, got %d", len(result.Records))
	}
	if result.TotalRetrieved != 30 {
		t.Errorf("expected retrieved 30, got %d", result.TotalRetrieved)
	}

	cp, err := store.Load()
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if cp.TotalRetrieved != 30 || len(cp.QueriedPageIDs) != 30 {
		t.Errorf("checkpoint mismatch: %d retrieved, %d ids", cp.TotalRetrieved, len(cp.QueriedPageIDs))
	}
}

func TestPaginator_IdempotentMerge(t *testing.T) {
	// Pages redeliver overlapping ids; every id must be merged exactly once
	f := &scriptedFetcher{responses: map[string]*notion.QueryResponse{
		"": {
			Records:    records("a", "b", "c"),
			HasMore:    true,
			NextCursor: "c1",
		},
		"c1": {
			// b and c duplicated from the prior page
			Records:    records("b", "c", "d"),
			HasMore:    true,
			NextCursor: "c2",
		},
		"c2": {
			Records:    records("d", "a", "e"),
			HasMore:    false,
			NextCursor: "",
		},
	}}

	store := newTestStore(t)
	p := New(f, testExecutor(3), store, testFetchConfig(), slog.Default())

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	seen := make(map[string]int)
	for _, rec := range result.Records {
		seen[rec.ID]++
	}
	if len(seen) != 5 {
		t.Errorf("expected 5 distinct ids, got %d", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("id %s merged %d times", id, n)
		}
	}
	if result.TotalRetrieved != 5 {
		t.Errorf("expected retrieved 5, got %d", result.TotalRetrieved)
	}
}

func TestPaginator_PageLimitExactStop(t *testing.T) {
	store := newTestStore(t)
	cfg := testFetchConfig() // limit 600, size 5
	p := New(&infiniteFetcher{}, testExecutor(3), store, cfg, slog.Default())
	p.SetSleep(func(ctx context.Context, d time.Duration) error { return nil })

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TotalRetrieved != 600 {
		t.Errorf("expected exactly 600 retrieved, got %d", result.TotalRetrieved)
	}
	if len(result.Records) != 600 {
		t.Errorf("expected exactly 600 records, got %d", len(result.Records))
	}

	cp, err := store.Load()
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if cp.TotalRetrieved != 600 {
		t.Errorf("checkpoint should reflect 600, got %d", cp.TotalRetrieved)
	}
}

func TestPaginator_StagnationTerminates(t *testing.T) {
	// Remote always returns the same records with a valid next cursor;
	// the loop must terminate within a bounded number of iterations
	same := records("x", "y", "z")
	f := &scriptedFetcher{responses: map[string]*notion.QueryResponse{
		"":     {Records: same, HasMore: true, NextCursor: "loop"},
		"loop": {Records: same, HasMore: true, NextCursor: "loop"},
	}}

	store := newTestStore(t)
	p := New(f, testExecutor(3), store, testFetchConfig(), slog.Default())

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Records) != 3 {
		t.Errorf("expected 3 records, got %d", len(result.Records))
	}
	if f.calls > 4 {
		t.Errorf("expected bounded iterations, fetcher called %d times", f.calls)
	}
}

func TestPaginator_StagnationStopsWithoutCursor(t *testing.T) {
	// Zero new records and no cursor offered: stop immediately
	f := &scriptedFetcher{responses: map[string]*notion.QueryResponse{
		"":   {Records: records("a"), HasMore: true, NextCursor: "c1"},
		"c1": {Records: records("a"), HasMore: false, NextCursor: ""},
	}}

	store := newTestStore(t)
	p := New(f, testExecutor(3), store, testFetchConfig(), slog.Default())

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Records) != 1 {
		t.Errorf("expected 1 record, got %d", len(result.Records))
	}
	if f.calls != 2 {
		t.Errorf("expected 2 calls, got %d", f.calls)
	}
}

func TestPaginator_RetriesExhaustedStopsGracefully(t *testing.T) {
	full := sixPages()
	f := &failAfterFetcher{inner: full, n: 2}

	store := newTestStore(t)
	p := New(f, testExecutor(2), store, testFetchConfig(), slog.Default())

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("graceful stop should not error: %v", err)
	}
	if result.Complete {
		t.Error("expected incomplete run")
	}
	if len(result.Records) != 10 {
		t.Errorf("expected 10 records from the two good pages, got %d", len(result.Records))
	}

	// Checkpoint holds the last successful page, not the failed one
	cp, err := store.Load()
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if cp.TotalRetrieved != 10 {
		t.Errorf("checkpoint should hold 10 retrieved, got %d", cp.TotalRetrieved)
	}
	if cp.StartCursor != "c2" {
		t.Errorf("checkpoint cursor should be c2, got %q", cp.StartCursor)
	}
}

func TestPaginator_ResumeFromCheckpoint(t *testing.T) {
	store := newTestStore(t)

	// Uninterrupted baseline
	baselineStore := newTestStore(t)
	baseline := New(sixPages(), testExecutor(3), baselineStore, testFetchConfig(), slog.Default())
	baselineResult, err := baseline.Run(context.Background())
	if err != nil {
		t.Fatalf("baseline run: %v", err)
	}

	// First run dies after two pages
	run1 := New(&failAfterFetcher{inner: sixPages(), n: 2}, testExecutor(1), store, testFetchConfig(), slog.Default())
	result1, err := run1.Run(context.Background())
	if err != nil {
		t.Fatalf("run 1: %v", err)
	}
	if result1.Complete {
		t.Fatal("run 1 should be incomplete")
	}

	// Second run resumes from the checkpoint with a healthy remote
	run2 := New(sixPages(), testExecutor(3), store, testFetchConfig(), slog.Default())
	result2, err := run2.Run(context.Background())
	if err != nil {
		t.Fatalf("run 2: %v", err)
	}
	if !result2.Complete {
		t.Error("run 2 should complete")
	}
	if result2.TotalRetrieved != baselineResult.TotalRetrieved {
		t.Errorf("resumed total %d, baseline %d", result2.TotalRetrieved, baselineResult.TotalRetrieved)
	}

	// The union of both runs equals the uninterrupted record set
	got := make(map[string]bool)
	for _, rec := range result1.Records {
		got[rec.ID] = true
	}
	for _, rec := range result2.Records {
		if got[rec.ID] {
			t.Errorf("id %s fetched by both runs", rec.ID)
		}
		got[rec.ID] = true
	}
	want := make(map[string]bool)
	for _, rec := range baselineResult.Records {
		want[rec.ID] = true
	}
	if len(got) != len(want) {
		t.Fatalf("union has %d records, baseline %d", len(got), len(want))
	}
	for id := range want {
		if !got[id] {
			t.Errorf("missing record %s after resume", id)
		}
	}
}

func TestPaginator_SoftThresholdPause(t *testing.T) {
	cfg := testFetchConfig()
	cfg.SoftThreshold = 10
	cfg.SoftThresholdPause = 30 * time.Second
	cfg.PageLimit = 20

	store := newTestStore(t)
	p := New(&infiniteFetcher{}, testExecutor(3), store, cfg, slog.Default())

	pauses := 0
	p.SetSleep(func(ctx context.Context, d time.Duration) error {
		pauses++
		if d != 30*time.Second {
			t.Errorf("unexpected pause duration %v", d)
		}
		return nil
	})

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TotalRetrieved != 20 {
		t.Errorf("expected 20 retrieved, got %d", result.TotalRetrieved)
	}
	if pauses != 1 {
		t.Errorf("expected exactly one threshold pause, got %d", pauses)
	}
}
