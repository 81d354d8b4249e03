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

const weiboAPIBase = "https://m.weibo.cn/api"

// weiboTimelineContainer prefixes a uid to form the user timeline container id.
const weiboTimelineContainer = "107603"

var _ Crawler = (*WeiboCrawler)(nil)

// WeiboCrawler fetches posts through the weibo mobile API.
type WeiboCrawler struct {
	client  *resty.Client
	opts    Options
	apiBase string
}

func newWeibo(creds *Credentials, opts Options) *WeiboCrawler {
	opts = opts.withDefaults()

	apiBase := opts.BaseURL
	if apiBase == "" {
		apiBase = weiboAPIBase
	}

	return &WeiboCrawler{
		client:  newClient(creds, opts),
		opts:    opts,
		apiBase: apiBase,
	}
}

func (c *WeiboCrawler) Platform() string {
	return database.PlatformWeibo
}

func (c *WeiboCrawler) Fetch(ctx context.Context, target database.WatchTarget, from, to time.Time) ([]database.NewItem, error) {
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
		// Weibo has no symbol timeline; monitor the ticker via search.
		if target.Symbol == "" {
			return nil, &TargetMismatchError{Platform: c.Platform(), TargetType: target.TargetType, Field: "symbol"}
		}
		items, err := c.search(ctx, target.Symbol, from, to)
		tagItems(items, &target)
		return items, err
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

func (c *WeiboCrawler) FetchByKeyword(ctx context.Context, keyword string, from, to time.Time) ([]database.NewItem, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	return c.search(ctx, keyword, from, to)
}

type weiboIndexResponse struct {
	Data struct {
		Cards []weiboCard `json:"cards"`
	} `json:"data"`
}

type weiboCard struct {
	CardType  int         `json:"card_type"`
	Mblog     *weiboMblog `json:"mblog"`
	CardGroup []weiboCard `json:"card_group"`
}

type weiboMblog struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	CreatedAt      string `json:"created_at"`
	Source         string `json:"source"`
	RepostsCount   int    `json:"reposts_count"`
	CommentsCount  int    `json:"comments_count"`
	AttitudesCount int    `json:"attitudes_count"`
	User           struct {
		ID         int64  `json:"id"`
		ScreenName string `json:"screen_name"`
	} `json:"user"`
	Pics []struct {
		URL string `json:"url"`
	} `json:"pics"`
}

func (c *WeiboCrawler) fetchUserTimeline(ctx context.Context, target database.WatchTarget, from, to time.Time) ([]database.NewItem, error) {
	containerID := weiboTimelineContainer + target.ExternalID

	return walkPages(ctx, c.Platform(), from, to, c.opts.MaxPages, c.opts.PageDelay,
		func(ctx context.Context, page int) ([]pageEntry, error) {
			var out weiboIndexResponse
			resp, err := c.client.R().
				SetContext(ctx).
				SetQueryParams(map[string]string{
					"type":        "uid",
					"value":       target.ExternalID,
					"containerid": containerID,
					"page":        strconv.Itoa(page),
				}).
				SetResult(&out).
				Get(c.apiBase + "/container/getIndex")
			if err != nil {
				return nil, err
			}
			if resp.StatusCode() != http.StatusOK {
				return nil, fmt.Errorf("weibo API returned status %d", resp.StatusCode())
			}

			var entries []pageEntry
			for _, card := range out.Data.Cards {
				// Only card_type 9 entries carry posts.
				if card.CardType != 9 || card.Mblog == nil {
					continue
				}
				entry := c.entryFromMblog(card.Mblog)
				entry.item.Symbol = target.Symbol
				entry.item.TargetRef = &target.ID
				entries = append(entries, entry)
			}
			return entries, nil
		})
}

func (c *WeiboCrawler) search(ctx context.Context, query string, from, to time.Time) ([]database.NewItem, error) {
	return walkPages(ctx, c.Platform(), from, to, searchMaxPages, c.opts.PageDelay,
		func(ctx context.Context, page int) ([]pageEntry, error) {
			var out weiboIndexResponse
			resp, err := c.client.R().
				SetContext(ctx).
				SetQueryParams(map[string]string{
					"containerid": "100103type=1&q=" + query,
					"page_type":   "searchall",
					"page":        strconv.Itoa(page),
				}).
				SetResult(&out).
				Get(c.apiBase + "/container/getIndex")
			if err != nil {
				return nil, err
			}
			if resp.StatusCode() != http.StatusOK {
				return nil, fmt.Errorf("weibo API returned status %d", resp.StatusCode())
			}

			var entries []pageEntry
			for _, card := range out.Data.Cards {
				// Search results nest posts inside card groups.
				for _, sub := range card.CardGroup {
					if sub.CardType != 9 || sub.Mblog == nil {
						continue
					}
					entry := c.entryFromMblog(sub.Mblog)
					entry.item.Topic = query
					entries = append(entries, entry)
				}
			}
			return entries, nil
		})
}

func (c *WeiboCrawler) entryFromMblog(mblog *weiboMblog) pageEntry {
	postedAt, ok := parseWeiboTime(mblog.CreatedAt)

	extra := map[string]interface{}{
		"source": mblog.Source,
	}
	if len(mblog.Pics) > 0 {
		pics := make([]string, 0, len(mblog.Pics))
		for _, pic := range mblog.Pics {
			pics = append(pics, pic.URL)
		}
		extra["pics"] = pics
	}

	return pageEntry{
		postedAt: postedAt,
		hasTime:  ok,
		item: database.NewItem{
			Platform:   database.PlatformWeibo,
			ItemID:     mblog.ID,
			AuthorID:   strconv.FormatInt(mblog.User.ID, 10),
			AuthorName: mblog.User.ScreenName,
			Body:       mblog.Text,
			URL:        "https://m.weibo.cn/status/" + mblog.ID,
			PostedAt:   postedAt,
			FetchedAt:  time.Now().UTC(),
			HeatScore:  normalize.HeatScore(mblog.AttitudesCount, mblog.CommentsCount, mblog.RepostsCount),
			Extra:      extra,
		},
	}
}

// parseWeiboTime handles weibo's "Sat Dec 07 10:30:00 +0800 2024" format,
// falling back to the shared parser for older relative forms.
func parseWeiboTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RubyDate, raw); err == nil {
		return t.In(time.Local), true
	}
	return normalize.ParseTimestamp(raw)
}

func tagItems(items []database.NewItem, target *database.WatchTarget) {
	for i := range items {
		items[i].Symbol = target.Symbol
		items[i].TargetRef = &target.ID
	}
}
