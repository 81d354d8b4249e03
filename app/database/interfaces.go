package database

import (
	"time"
)

// ItemFilter narrows item queries for the read API. Zero values mean
// "no constraint" for that field.
type ItemFilter struct {
	Platform string
	Symbol   string
	Keyword  string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

type ItemRepository interface {
	Exists(platform, itemID string) (bool, error)
	BulkInsert(items []NewItem) (int, error)

	ListItems(filter ItemFilter) ([]Item, int, error)
	GetItemCount() (int, error)
}

type TargetRepository interface {
	ListEnabled(platform string) ([]WatchTarget, error)
	ListAll() ([]WatchTarget, error)
	GetTarget(id int64) (*WatchTarget, error)

	CreateTarget(target WatchTarget) (int64, error)
	UpdateTarget(target WatchTarget) error
	DeleteTarget(id int64) error

	// UpsertSeed registers a target loaded from a seed file, matching on
	// its identity fields. Returns the row id and whether a row was created.
	UpsertSeed(target WatchTarget) (int64, bool, error)
}

type RunRepository interface {
	// UpsertPending ensures a run row exists for (date, platform), creating
	// it in the pending state when absent.
	UpsertPending(date, platform string) (*Run, error)

	// MarkRunning transitions the run to running and reports whether the
	// transition happened. A false result means the run is already running
	// and the caller should treat the cycle as in progress.
	MarkRunning(date, platform string) (bool, error)

	// Complete sets the terminal status along with the final counters.
	Complete(date, platform, status string, targetCount, itemCount int, errorDetail string) error

	GetRun(date, platform string) (*Run, error)
	ListByDate(date string) ([]Run, error)
	ListRecent(limit int) ([]Run, error)
}

type AccountRepository interface {
	// GetActiveCredential returns the active online account for a platform,
	// or nil when none is available.
	GetActiveCredential(platform string) (*Account, error)

	ListAccounts() ([]Account, error)
	UpsertAccount(account Account) (int64, error)
}
