// Package ingest orchestrates daily collection cycles: one umbrella run
// per date plus one run per platform, each tracked in job_runs. The
// coordinator owns run state transitions and error aggregation; fetching
// belongs to the crawler package and persistence to the repositories.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/crystalsense/crystal/app/crawler"
	"github.com/crystalsense/crystal/app/database"
)

// ErrCycleInProgress reports that a cycle for the requested date is already
// running. Callers treat it as a benign skip, not a failure.
var ErrCycleInProgress = errors.New("ingestion cycle already in progress")

// CrawlerFactory builds the crawler for a platform. Indirected so tests can
// substitute fakes.
type CrawlerFactory func(platform string, creds *crawler.Credentials) (crawler.Crawler, error)

// CycleResult summarizes one completed cycle.
type CycleResult struct {
	Date        string   `json:"date"`
	Status      string   `json:"status"`
	TargetCount int      `json:"target_count"`
	ItemCount   int      `json:"item_count"`
	Errors      []string `json:"errors,omitempty"`
}

type Coordinator struct {
	targetRepo  database.TargetRepository
	itemRepo    database.ItemRepository
	runRepo     database.RunRepository
	accountRepo database.AccountRepository
	newCrawler  CrawlerFactory
	platforms   []string
}

func NewCoordinator(
	targetRepo database.TargetRepository,
	itemRepo database.ItemRepository,
	runRepo database.RunRepository,
	accountRepo database.AccountRepository,
	newCrawler CrawlerFactory,
) *Coordinator {
	return &Coordinator{
		targetRepo:  targetRepo,
		itemRepo:    itemRepo,
		runRepo:     runRepo,
		accountRepo: accountRepo,
		newCrawler:  newCrawler,
		platforms:   database.Platforms,
	}
}

// DateRange expands a YYYY-MM-DD date into its inclusive local-time bounds.
func DateRange(date string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	from := day
	to := day.Add(24*time.Hour - time.Millisecond)
	return from, to, nil
}

// Yesterday returns the previous calendar day in the collection timezone.
func Yesterday() string {
	return time.Now().AddDate(0, 0, -1).Format("2006-01-02")
}

// RunCycle executes the full ingestion cycle for one date. The umbrella
// (date, "all") run acts as the cycle mutex: a second call for the same
// date while one is running returns ErrCycleInProgress. Platforms run
// concurrently; a platform failing never aborts the others.
func (c *Coordinator) RunCycle(ctx context.Context, date string) (*CycleResult, error) {
	if date == "" {
		date = Yesterday()
	}

	from, to, err := DateRange(date)
	if err != nil {
		return nil, err
	}

	if _, err := c.runRepo.UpsertPending(date, database.PlatformAll); err != nil {
		return nil, fmt.Errorf("failed to register cycle run: %w", err)
	}
	ok, err := c.runRepo.MarkRunning(date, database.PlatformAll)
	if err != nil {
		return nil, fmt.Errorf("failed to start cycle run: %w", err)
	}
	if !ok {
		return nil, ErrCycleInProgress
	}

	slog.Info("Ingestion cycle started", "date", date, "platforms", len(c.platforms))

	outcomes := make(chan platformOutcome, len(c.platforms))
	for _, platform := range c.platforms {
		go func(platform string) {
			outcomes <- c.runPlatform(ctx, date, platform, from, to)
		}(platform)
	}

	result := &CycleResult{Date: date}
	completed := 0
	for range c.platforms {
		outcome := <-outcomes
		result.TargetCount += outcome.targets
		result.ItemCount += outcome.items
		result.Errors = append(result.Errors, outcome.errors...)
		if outcome.completed {
			completed++
		}
	}

	switch {
	case len(result.Errors) == 0:
		result.Status = database.RunStatusSuccess
	case completed > 0:
		result.Status = database.RunStatusPartial
	default:
		result.Status = database.RunStatusFailed
	}

	detail := strings.Join(result.Errors, "; ")
	if err := c.runRepo.Complete(date, database.PlatformAll, result.Status, result.TargetCount, result.ItemCount, detail); err != nil {
		return nil, fmt.Errorf("failed to finish cycle run: %w", err)
	}

	slog.Info("Ingestion cycle finished",
		"date", date, "status", result.Status,
		"targets", result.TargetCount, "items", result.ItemCount,
		"errors", len(result.Errors))

	return result, nil
}

// RunYesterday runs the cycle for the previous calendar day.
func (c *Coordinator) RunYesterday(ctx context.Context) (*CycleResult, error) {
	return c.RunCycle(ctx, Yesterday())
}

type platformOutcome struct {
	platform  string
	targets   int
	items     int
	errors    []string
	completed bool
}

// runPlatform executes the per-platform run. Missing credentials and a
// failed crawler build mark the platform run failed without touching the
// others. Target-level errors are recorded but never stop the remaining
// targets; the platform run still completes as success with the detail
// captured in error_detail.
func (c *Coordinator) runPlatform(ctx context.Context, date, platform string, from, to time.Time) platformOutcome {
	outcome := platformOutcome{platform: platform}

	fail := func(msg string) platformOutcome {
		outcome.errors = append(outcome.errors, msg)
		if err := c.runRepo.Complete(date, platform, database.RunStatusFailed, 0, 0, msg); err != nil {
			slog.Error("Failed to record platform run failure", "platform", platform, "error", err)
		}
		return outcome
	}

	if _, err := c.runRepo.UpsertPending(date, platform); err != nil {
		return fail(fmt.Sprintf("%s: failed to register run: %v", platform, err))
	}
	ok, err := c.runRepo.MarkRunning(date, platform)
	if err != nil {
		return fail(fmt.Sprintf("%s: failed to start run: %v", platform, err))
	}
	if !ok {
		outcome.errors = append(outcome.errors, fmt.Sprintf("%s: run already in progress", platform))
		return outcome
	}

	account, err := c.accountRepo.GetActiveCredential(platform)
	if err != nil {
		return fail(fmt.Sprintf("%s: failed to load credential: %v", platform, err))
	}
	if account == nil {
		slog.Warn("No active credential, skipping platform", "platform", platform)
		return fail(fmt.Sprintf("%s: no active credential", platform))
	}

	cr, err := c.newCrawler(platform, &crawler.Credentials{Cookies: account.Cookies})
	if err != nil {
		return fail(fmt.Sprintf("%s: failed to build crawler: %v", platform, err))
	}

	targets, err := c.targetRepo.ListEnabled(platform)
	if err != nil {
		return fail(fmt.Sprintf("%s: failed to list targets: %v", platform, err))
	}
	outcome.targets = len(targets)

	for _, target := range targets {
		if ctx.Err() != nil {
			outcome.errors = append(outcome.errors, fmt.Sprintf("%s: cycle canceled: %v", platform, ctx.Err()))
			break
		}

		items, err := cr.Fetch(ctx, target, from, to)
		if err != nil {
			slog.Warn("Target fetch failed",
				"platform", platform, "target_id", target.ID, "target", target.DisplayName, "error", err)
			outcome.errors = append(outcome.errors, fmt.Sprintf("%s: target %d (%s): %v", platform, target.ID, target.DisplayName, err))
			continue
		}

		inserted, err := c.itemRepo.BulkInsert(items)
		if err != nil {
			outcome.errors = append(outcome.errors, fmt.Sprintf("%s: target %d (%s): insert failed: %v", platform, target.ID, target.DisplayName, err))
			continue
		}

		slog.Debug("Target fetched",
			"platform", platform, "target_id", target.ID,
			"fetched", len(items), "inserted", inserted)
		outcome.items += inserted
	}

	detail := strings.Join(outcome.errors, "; ")
	if err := c.runRepo.Complete(date, platform, database.RunStatusSuccess, outcome.targets, outcome.items, detail); err != nil {
		outcome.errors = append(outcome.errors, fmt.Sprintf("%s: failed to finish run: %v", platform, err))
		return outcome
	}

	outcome.completed = true
	return outcome
}
