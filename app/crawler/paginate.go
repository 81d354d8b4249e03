package crawler

import (
	"context"
	"log/slog"
	"time"

	"github.com/crystalsense/crystal/app/database"
)

// pageEntry is one feed entry as seen by the range-bounded page walk.
// hasTime is false when the entry's timestamp could not be parsed; such
// entries are skipped because window containment cannot be proven.
type pageEntry struct {
	postedAt time.Time
	hasTime  bool
	item     database.NewItem
}

// pageFunc fetches one page of a feed. Page numbers start at 1; cursor-based
// feeds keep their own cursor state and ignore the number. An empty result
// marks the end of available history.
type pageFunc func(ctx context.Context, page int) ([]pageEntry, error)

// walkPages drives reverse-chronological pagination within [from, to].
// The first entry older than from ends the walk: with a newest-first feed,
// every later page is strictly older. Entries newer than to are skipped but
// the walk continues. The rule assumes strict feed ordering; a platform
// that reorders entries (pinned or promoted posts) can make it under-collect,
// which is an accepted limitation rather than something corrected here.
//
// A page-level error after items were collected keeps the partial result;
// only a failure before anything was fetched is reported as an error.
func walkPages(ctx context.Context, platform string, from, to time.Time, maxPages int, delay time.Duration, fetch pageFunc) ([]database.NewItem, error) {
	var collected []database.NewItem

	for page := 1; page <= maxPages; page++ {
		if page > 1 {
			select {
			case <-ctx.Done():
				if len(collected) == 0 {
					return nil, ctx.Err()
				}
				return collected, nil
			case <-time.After(delay):
			}
		}

		entries, err := fetch(ctx, page)
		if err != nil {
			if len(collected) == 0 && page == 1 {
				return nil, err
			}
			slog.Warn("Page fetch failed, keeping partial results",
				"platform", platform, "page", page, "collected", len(collected), "error", err)
			return collected, nil
		}

		if len(entries) == 0 {
			return collected, nil
		}

		for _, entry := range entries {
			if !entry.hasTime {
				continue
			}
			if entry.postedAt.Before(from) {
				// The feed crossed below the requested window.
				return collected, nil
			}
			if entry.postedAt.After(to) {
				continue
			}
			collected = append(collected, entry.item)
		}
	}

	return collected, nil
}
