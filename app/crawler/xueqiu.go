package crawler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/crystalsense/crystal/app/database"
	"github.com/crystalsense/crystal/app/normalize"
)

const xueqiuAPIBase = "https://xueqiu.com"

var _ Crawler = (*XueqiuCrawler)(nil)

// XueqiuCrawler fetches stock discussion from xueqiu. The symbol timeline
// pages with a max_id cursor; the user timeline and search use page numbers.
type XueqiuCrawler struct {
	client  *resty.Client
	opts    Options
	apiBase string
	primed  bool
}

func newXueqiu(creds *Credentials, opts Options) *XueqiuCrawler {
	opts = opts.withDefaults()

	apiBase := opts.BaseURL
	if apiBase == "" {
		apiBase = xueqiuAPIBase
	}

	client := newClient(creds, opts).
		SetHeader("Accept", "application/json").
		SetHeader("Origin", xueqiuAPIBase).
		SetHeader("Referer", xueqiuAPIBase+"/")

	// A credential bundle carrying xq_a_token skips the priming request.
	primed := creds != nil && creds.Cookies["xq_a_token"] != ""

	return &XueqiuCrawler{
		client:  client,
		opts:    opts,
		apiBase: apiBase,
		primed:  primed,
	}
}

func (c *XueqiuCrawler) Platform() string {
	return database.PlatformXueqiu
}

func (c *XueqiuCrawler) Fetch(ctx context.Context, target database.WatchTarget, from, to time.Time) ([]database.NewItem, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	switch target.TargetType {
	case database.TargetTypeAccount:
		if target.ExternalID == "" {
			return nil, &TargetMismatchError{Platform: c.Platform(), TargetType: target.TargetType, Field: "external_id"}
		}
		return c.fetchUserTimeline(ctx, target, from, to)
	case database.TargetTypeSymbol:
		if target.Symbol == "" {
			return nil, &TargetMismatchError{Platform: c.Platform(), TargetType: target.TargetType, Field: "symbol"}
		}
		return c.fetchSymbolTimeline(ctx, target, from, to)
	case database.TargetTypeKeyword:
		if target.Keyword == "" {
			return nil, &TargetMismatchError{Platform: c.Platform(), TargetType: target.TargetType, Field: "keyword"}
		}
		items, err := c.search(ctx, target.Keyword, from, to)
		tagItems(items, &target)
		return items, err
	default:
		return nil, &TargetMismatchError{Platform: c.Platform(), TargetType: target.TargetType, Field: "target_type"}
	}
}

func (c *XueqiuCrawler) FetchByKeyword(ctx context.Context, keyword string, from, to time.Time) ([]database.NewItem, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	return c.search(ctx, keyword, from, to)
}

type xueqiuTimelineResponse struct {
	Statuses []xueqiuStatus `json:"statuses"`
}

type xueqiuListResponse struct {
	List []xueqiuStatus `json:"list"`
}

type xueqiuStatus struct {
	ID           int64  `json:"id"`
	Text         string `json:"text"`
	Description  string `json:"description"`
	Target       string `json:"target"`
	CreatedAt    int64  `json:"created_at"` // unix milliseconds
	LikeCount    int    `json:"like_count"`
	ReplyCount   int    `json:"reply_count"`
	RetweetCount int    `json:"retweet_count"`
	User         struct {
		ID         int64  `json:"id"`
		ScreenName string `json:"screen_name"`
	} `json:"user"`
	Symbols []struct {
		Symbol string `json:"symbol"`
	} `json:"symbols"`
}

func (c *XueqiuCrawler) fetchUserTimeline(ctx context.Context, target database.WatchTarget, from, to time.Time) ([]database.NewItem, error) {
	c.prime(ctx)

	return walkPages(ctx, c.Platform(), from, to, c.opts.MaxPages, c.opts.PageDelay,
		func(ctx context.Context, page int) ([]pageEntry, error) {
			var out xueqiuTimelineResponse
			resp, err := c.client.R().
				SetContext(ctx).
				SetQueryParams(map[string]string{
					"user_id": target.ExternalID,
					"page":    strconv.Itoa(page),
					"count":   "20",
				}).
				SetResult(&out).
				Get(c.apiBase + "/v4/statuses/user_timeline.json")
			if err != nil {
				return nil, err
			}
			if resp.StatusCode() != http.StatusOK {
				return nil, fmt.Errorf("xueqiu API returned status %d", resp.StatusCode())
			}

			var entries []pageEntry
			for i := range out.Statuses {
				entry := c.entryFromStatus(&out.Statuses[i])
				entry.item.Symbol = target.Symbol
				entry.item.TargetRef = &target.ID
				entries = append(entries, entry)
			}
			return entries, nil
		})
}

func (c *XueqiuCrawler) fetchSymbolTimeline(ctx context.Context, target database.WatchTarget, from, to time.Time) ([]database.NewItem, error) {
	c.prime(ctx)

	var maxID int64

	return walkPages(ctx, c.Platform(), from, to, c.opts.MaxPages, c.opts.PageDelay,
		func(ctx context.Context, _ int) ([]pageEntry, error) {
			params := map[string]string{
				"symbol": target.Symbol,
				"count":  "20",
				"source": "all",
			}
			if maxID != 0 {
				params["max_id"] = strconv.FormatInt(maxID, 10)
			}

			var out xueqiuListResponse
			resp, err := c.client.R().
				SetContext(ctx).
				SetQueryParams(params).
				SetResult(&out).
				Get(c.apiBase + "/v4/statuses/stock_timeline.json")
			if err != nil {
				return nil, err
			}
			if resp.StatusCode() != http.StatusOK {
				return nil, fmt.Errorf("xueqiu API returned status %d", resp.StatusCode())
			}

			var entries []pageEntry
			for i := range out.List {
				status := &out.List[i]
				entry := c.entryFromStatus(status)
				entry.item.Symbol = target.Symbol
				entry.item.TargetRef = &target.ID
				entries = append(entries, entry)
				maxID = status.ID
			}
			return entries, nil
		})
}

func (c *XueqiuCrawler) search(ctx context.Context, keyword string, from, to time.Time) ([]database.NewItem, error) {
	c.prime(ctx)

	return walkPages(ctx, c.Platform(), from, to, searchMaxPages, c.opts.PageDelay,
		func(ctx context.Context, page int) ([]pageEntry, error) {
			var out xueqiuListResponse
			resp, err := c.client.R().
				SetContext(ctx).
				SetQueryParams(map[string]string{
					"q":     keyword,
					"count": "20",
					"page":  strconv.Itoa(page),
				}).
				SetResult(&out).
				Get(c.apiBase + "/query/v1/search/status.json")
			if err != nil {
				return nil, err
			}
			if resp.StatusCode() != http.StatusOK {
				return nil, fmt.Errorf("xueqiu API returned status %d", resp.StatusCode())
			}

			var entries []pageEntry
			for i := range out.List {
				entry := c.entryFromStatus(&out.List[i])
				entry.item.Topic = keyword
				entries = append(entries, entry)
			}
			return entries, nil
		})
}

func (c *XueqiuCrawler) entryFromStatus(status *xueqiuStatus) pageEntry {
	var postedAt time.Time
	hasTime := status.CreatedAt != 0
	if hasTime {
		postedAt = time.UnixMilli(status.CreatedAt).In(time.Local)
	}

	body := status.Text
	if body == "" {
		body = status.Description
	}

	var extra map[string]interface{}
	if len(status.Symbols) > 0 {
		symbols := make([]string, 0, len(status.Symbols))
		for _, s := range status.Symbols {
			symbols = append(symbols, s.Symbol)
		}
		extra = map[string]interface{}{"symbols": symbols}
	}

	return pageEntry{
		postedAt: postedAt,
		hasTime:  hasTime,
		item: database.NewItem{
			Platform:   database.PlatformXueqiu,
			ItemID:     strconv.FormatInt(status.ID, 10),
			AuthorID:   strconv.FormatInt(status.User.ID, 10),
			AuthorName: status.User.ScreenName,
			Body:       normalize.StripTags(body),
			URL:        xueqiuAPIBase + status.Target,
			PostedAt:   postedAt,
			FetchedAt:  time.Now().UTC(),
			HeatScore:  normalize.HeatScore(status.LikeCount, status.ReplyCount, status.RetweetCount),
			Extra:      extra,
		},
	}
}

// prime performs one bare GET against the site root so the anti-crawler
// token cookie lands in the client jar before API calls. Best effort: a
// failed priming request surfaces later as an API error.
func (c *XueqiuCrawler) prime(ctx context.Context) {
	if c.primed {
		return
	}
	c.client.R().SetContext(ctx).Get(c.apiBase + "/")
	c.primed = true
}
