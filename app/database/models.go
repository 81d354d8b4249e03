package database

import (
	"time"
)

const (
	PlatformWeibo  = "weibo"
	PlatformZhihu  = "zhihu"
	PlatformXueqiu = "xueqiu"

	// PlatformAll is the sentinel platform of the umbrella run record
	// covering a whole ingestion cycle.
	PlatformAll = "all"
)

// Platforms lists the networks an ingestion cycle visits, in execution order.
var Platforms = []string{PlatformWeibo, PlatformZhihu, PlatformXueqiu}

const (
	TargetTypeAccount = "account"
	TargetTypeSymbol  = "symbol"
	TargetTypeKeyword = "keyword"
)

const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
	RunStatusPartial = "partial"
)

const (
	LoginStatusOnline  = "online"
	LoginStatusOffline = "offline"
	LoginStatusError   = "error"
)

// WatchTarget is a monitored account, stock symbol, or keyword on one
// platform. Exactly the field matching TargetType is populated.
type WatchTarget struct {
	ID          int64
	Platform    string
	TargetType  string
	ExternalID  string // platform-native user id, set iff type=account
	Symbol      string // ticker, set iff type=symbol
	Keyword     string // set iff type=keyword
	DisplayName string
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Item is a stored sentiment item row. Rows are immutable once written.
type Item struct {
	ID             int64
	Platform       string
	ItemID         string
	RootID         string
	AuthorID       string
	AuthorName     string
	Body           string
	URL            string
	PostedAt       time.Time
	FetchedAt      time.Time
	Symbol         string
	TargetRef      *int64
	HeatScore      float64
	SentimentScore *float64
	Topic          string
	Extra          map[string]interface{}
	CreatedAt      time.Time
}

// NewItem is a normalized item produced by a crawler, not yet persisted.
type NewItem struct {
	Platform   string
	ItemID     string
	RootID     string
	AuthorID   string
	AuthorName string
	Body       string
	URL        string
	PostedAt   time.Time
	FetchedAt  time.Time
	Symbol     string
	TargetRef  *int64
	HeatScore  float64
	Topic      string
	Extra      map[string]interface{}
}

// Run is one (date, platform) execution unit of the ingestion cycle.
type Run struct {
	ID          int64
	Date        string // YYYY-MM-DD in the collection timezone
	Platform    string
	Status      string
	TargetCount int
	ItemCount   int
	ErrorDetail string
	StartedAt   *time.Time
	FinishedAt  *time.Time
	CreatedAt   time.Time
}

// Account holds a platform credential bundle. The pipeline only consumes
// these; acquisition and refresh happen outside the service.
type Account struct {
	ID          int64
	Platform    string
	Username    string
	LoginType   string
	LoginStatus string
	LastLoginAt *time.Time
	LastError   string
	Cookies     map[string]string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
