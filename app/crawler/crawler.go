// Package crawler fetches posts, answers and comments from the supported
// platforms. Every crawler implements the same contract: resolve a watch
// target to a platform strategy, walk the feed newest-first within the
// requested window, and emit normalized items. Crawlers never persist
// anything; persistence and run bookkeeping belong to the ingest package.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/crystalsense/crystal/app/database"
)

const (
	// DefaultMaxPages bounds how deep a single target's feed is crawled.
	DefaultMaxPages = 10

	// searchMaxPages is the shallower ceiling used for keyword search
	// endpoints, which rank loosely by recency.
	searchMaxPages = 5

	// DefaultPageDelay is the fixed politeness pause between successive
	// page requests to the same host. It is a policy constant, not
	// adaptive backoff.
	DefaultPageDelay = time.Second

	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

var ErrUnknownPlatform = errors.New("unknown platform")

// ErrInvalidRange reports a caller error: violated ranges are never retried.
var ErrInvalidRange = errors.New("invalid date range: from must not be after to")

// TargetMismatchError reports a target whose populated fields do not match
// its declared type. This is a configuration error, surfaced before any I/O.
type TargetMismatchError struct {
	Platform   string
	TargetType string
	Field      string
}

func (e *TargetMismatchError) Error() string {
	return fmt.Sprintf("%s target of type %q is missing %s", e.Platform, e.TargetType, e.Field)
}

// Credentials is the bundle a crawler consumes for authenticated requests.
// How it was obtained is not the crawler's concern.
type Credentials struct {
	Cookies map[string]string
}

type Options struct {
	UserAgent string
	PageDelay time.Duration
	MaxPages  int
	Timeout   time.Duration

	// BaseURL overrides the platform API base, used by tests.
	BaseURL string
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.PageDelay == 0 {
		o.PageDelay = DefaultPageDelay
	}
	if o.MaxPages == 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

type Crawler interface {
	Platform() string

	// Fetch collects items for a target within [from, to], both inclusive.
	// A partial result after a page-level failure is returned without an
	// error; an error means nothing could be fetched at all.
	Fetch(ctx context.Context, target database.WatchTarget, from, to time.Time) ([]database.NewItem, error)

	// FetchByKeyword runs a search-style fetch independent of a stored target.
	FetchByKeyword(ctx context.Context, keyword string, from, to time.Time) ([]database.NewItem, error)
}

// New returns the crawler for a platform identifier.
func New(platform string, creds *Credentials, opts Options) (Crawler, error) {
	switch platform {
	case database.PlatformWeibo:
		return newWeibo(creds, opts), nil
	case database.PlatformZhihu:
		return newZhihu(creds, opts), nil
	case database.PlatformXueqiu:
		return newXueqiu(creds, opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
}

func newClient(creds *Credentials, opts Options) *resty.Client {
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent)

	if creds != nil {
		for name, value := range creds.Cookies {
			client.SetCookie(&http.Cookie{Name: name, Value: value})
		}
	}

	return client
}

func validateRange(from, to time.Time) error {
	if from.After(to) {
		return ErrInvalidRange
	}
	return nil
}
