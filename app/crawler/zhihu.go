package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/crystalsense/crystal/app/database"
	"github.com/crystalsense/crystal/app/normalize"
)

const zhihuAPIBase = "https://www.zhihu.com/api/v4"

// zhihuBodyLimit caps answer and article bodies; zhihu content routinely
// runs to tens of thousands of characters.
const zhihuBodyLimit = 500

var _ Crawler = (*ZhihuCrawler)(nil)

// ZhihuCrawler fetches answers and articles through the zhihu v4 API.
// Member feeds page with offset/limit and signal exhaustion via
// paging.is_end; search pages the same way.
type ZhihuCrawler struct {
	client  *resty.Client
	opts    Options
	apiBase string
}

func newZhihu(creds *Credentials, opts Options) *ZhihuCrawler {
	opts = opts.withDefaults()

	apiBase := opts.BaseURL
	if apiBase == "" {
		apiBase = zhihuAPIBase
	}

	return &ZhihuCrawler{
		client:  newClient(creds, opts),
		opts:    opts,
		apiBase: apiBase,
	}
}

func (c *ZhihuCrawler) Platform() string {
	return database.PlatformZhihu
}

func (c *ZhihuCrawler) Fetch(ctx context.Context, target database.WatchTarget, from, to time.Time) ([]database.NewItem, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	switch target.TargetType {
	case database.TargetTypeAccount:
		if target.ExternalID == "" {
			return nil, &TargetMismatchError{Platform: c.Platform(), TargetType: target.TargetType, Field: "external_id"}
		}
		return c.fetchMember(ctx, target, from, to)
	case database.TargetTypeSymbol:
		// Zhihu has no symbol feed; monitor the ticker via search.
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

func (c *ZhihuCrawler) FetchByKeyword(ctx context.Context, keyword string, from, to time.Time) ([]database.NewItem, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	return c.search(ctx, keyword, from, to)
}

// fetchMember collects both a member's answers and their articles. One feed
// failing is tolerated as long as the other produced something; both failing
// with nothing collected is an error.
func (c *ZhihuCrawler) fetchMember(ctx context.Context, target database.WatchTarget, from, to time.Time) ([]database.NewItem, error) {
	answers, answersErr := c.fetchAnswers(ctx, target, from, to)
	articles, articlesErr := c.fetchArticles(ctx, target, from, to)

	items := append(answers, articles...)
	if len(items) == 0 && answersErr != nil && articlesErr != nil {
		return nil, errors.Join(answersErr, articlesErr)
	}
	return items, nil
}

type zhihuPaging struct {
	IsEnd bool `json:"is_end"`
}

type zhihuAnswersResponse struct {
	Data   []zhihuAnswer `json:"data"`
	Paging zhihuPaging   `json:"paging"`
}

type zhihuAnswer struct {
	ID           json.RawMessage `json:"id"`
	Content      string          `json:"content"`
	Excerpt      string          `json:"excerpt"`
	CreatedTime  int64           `json:"created_time"` // unix seconds
	VoteupCount  int             `json:"voteup_count"`
	CommentCount int             `json:"comment_count"`
	Author       zhihuAuthor     `json:"author"`
	Question     struct {
		ID    json.RawMessage `json:"id"`
		Title string          `json:"title"`
	} `json:"question"`
}

type zhihuArticlesResponse struct {
	Data   []zhihuArticle `json:"data"`
	Paging zhihuPaging    `json:"paging"`
}

type zhihuArticle struct {
	ID           json.RawMessage `json:"id"`
	Title        string          `json:"title"`
	Content      string          `json:"content"`
	Excerpt      string          `json:"excerpt"`
	Created      int64           `json:"created"` // unix seconds
	VoteupCount  int             `json:"voteup_count"`
	CommentCount int             `json:"comment_count"`
	Author       zhihuAuthor     `json:"author"`
}

type zhihuAuthor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *ZhihuCrawler) fetchAnswers(ctx context.Context, target database.WatchTarget, from, to time.Time) ([]database.NewItem, error) {
	offset := 0
	done := false

	return walkPages(ctx, c.Platform(), from, to, c.opts.MaxPages, c.opts.PageDelay,
		func(ctx context.Context, _ int) ([]pageEntry, error) {
			if done {
				return nil, nil
			}

			var out zhihuAnswersResponse
			resp, err := c.client.R().
				SetContext(ctx).
				SetQueryParams(map[string]string{
					"offset":  strconv.Itoa(offset),
					"limit":   "20",
					"sort_by": "created",
				}).
				SetResult(&out).
				Get(c.apiBase + "/members/" + target.ExternalID + "/answers")
			if err != nil {
				return nil, err
			}
			if resp.StatusCode() != http.StatusOK {
				return nil, fmt.Errorf("zhihu API returned status %d", resp.StatusCode())
			}

			offset += len(out.Data)
			done = out.Paging.IsEnd

			var entries []pageEntry
			for i := range out.Data {
				entry := c.entryFromAnswer(&out.Data[i])
				entry.item.Symbol = target.Symbol
				entry.item.TargetRef = &target.ID
				entries = append(entries, entry)
			}
			return entries, nil
		})
}

func (c *ZhihuCrawler) fetchArticles(ctx context.Context, target database.WatchTarget, from, to time.Time) ([]database.NewItem, error) {
	offset := 0
	done := false

	return walkPages(ctx, c.Platform(), from, to, c.opts.MaxPages, c.opts.PageDelay,
		func(ctx context.Context, _ int) ([]pageEntry, error) {
			if done {
				return nil, nil
			}

			var out zhihuArticlesResponse
			resp, err := c.client.R().
				SetContext(ctx).
				SetQueryParams(map[string]string{
					"offset":  strconv.Itoa(offset),
					"limit":   "20",
					"sort_by": "created",
				}).
				SetResult(&out).
				Get(c.apiBase + "/members/" + target.ExternalID + "/articles")
			if err != nil {
				return nil, err
			}
			if resp.StatusCode() != http.StatusOK {
				return nil, fmt.Errorf("zhihu API returned status %d", resp.StatusCode())
			}

			offset += len(out.Data)
			done = out.Paging.IsEnd

			var entries []pageEntry
			for i := range out.Data {
				entry := c.entryFromArticle(&out.Data[i])
				entry.item.Symbol = target.Symbol
				entry.item.TargetRef = &target.ID
				entries = append(entries, entry)
			}
			return entries, nil
		})
}

type zhihuSearchResponse struct {
	Data []struct {
		Type   string `json:"type"`
		Object struct {
			Type         string          `json:"type"`
			ID           json.RawMessage `json:"id"`
			Content      string          `json:"content"`
			Excerpt      string          `json:"excerpt"`
			Title        string          `json:"title"`
			CreatedTime  int64           `json:"created_time"`
			VoteupCount  int             `json:"voteup_count"`
			CommentCount int             `json:"comment_count"`
			Author       zhihuAuthor     `json:"author"`
			Question     struct {
				ID    json.RawMessage `json:"id"`
				Title string          `json:"name"`
			} `json:"question"`
		} `json:"object"`
	} `json:"data"`
	Paging zhihuPaging `json:"paging"`
}

func (c *ZhihuCrawler) search(ctx context.Context, query string, from, to time.Time) ([]database.NewItem, error) {
	offset := 0
	done := false

	return walkPages(ctx, c.Platform(), from, to, searchMaxPages, c.opts.PageDelay,
		func(ctx context.Context, _ int) ([]pageEntry, error) {
			if done {
				return nil, nil
			}

			var out zhihuSearchResponse
			resp, err := c.client.R().
				SetContext(ctx).
				SetQueryParams(map[string]string{
					"t":          "general",
					"q":          query,
					"correction": "1",
					"offset":     strconv.Itoa(offset),
					"limit":      "20",
				}).
				SetResult(&out).
				Get(c.apiBase + "/search_v3")
			if err != nil {
				return nil, err
			}
			if resp.StatusCode() != http.StatusOK {
				return nil, fmt.Errorf("zhihu API returned status %d", resp.StatusCode())
			}

			offset += len(out.Data)
			done = out.Paging.IsEnd

			var entries []pageEntry
			for _, result := range out.Data {
				if result.Type != "search_result" {
					continue
				}
				obj := result.Object

				var entry pageEntry
				switch obj.Type {
				case "answer":
					answer := &zhihuAnswer{
						ID:           obj.ID,
						Content:      obj.Content,
						Excerpt:      obj.Excerpt,
						CreatedTime:  obj.CreatedTime,
						VoteupCount:  obj.VoteupCount,
						CommentCount: obj.CommentCount,
						Author:       obj.Author,
					}
					answer.Question.ID = obj.Question.ID
					answer.Question.Title = obj.Question.Title
					entry = c.entryFromAnswer(answer)
				case "article":
					entry = c.entryFromArticle(&zhihuArticle{
						ID:           obj.ID,
						Title:        obj.Title,
						Content:      obj.Content,
						Excerpt:      obj.Excerpt,
						Created:      obj.CreatedTime,
						VoteupCount:  obj.VoteupCount,
						CommentCount: obj.CommentCount,
						Author:       obj.Author,
					})
				default:
					continue
				}

				entry.item.Topic = query
				entries = append(entries, entry)
			}
			return entries, nil
		})
}

func (c *ZhihuCrawler) entryFromAnswer(answer *zhihuAnswer) pageEntry {
	answerID := rawID(answer.ID)
	questionID := rawID(answer.Question.ID)

	body := answer.Content
	if body == "" {
		body = answer.Excerpt
	}
	body = normalize.Truncate(normalize.StripTags(body), zhihuBodyLimit)
	if answer.Question.Title != "" {
		body = "【" + answer.Question.Title + "】" + body
	}

	postedAt := time.Unix(answer.CreatedTime, 0).In(time.Local)

	return pageEntry{
		postedAt: postedAt,
		hasTime:  answer.CreatedTime != 0,
		item: database.NewItem{
			Platform:   database.PlatformZhihu,
			ItemID:     answerID,
			RootID:     questionID,
			AuthorID:   answer.Author.ID,
			AuthorName: answer.Author.Name,
			Body:       body,
			URL:        "https://www.zhihu.com/question/" + questionID + "/answer/" + answerID,
			PostedAt:   postedAt,
			FetchedAt:  time.Now().UTC(),
			HeatScore:  normalize.HeatScore(answer.VoteupCount, answer.CommentCount, 0),
			Topic:      answer.Question.Title,
		},
	}
}

func (c *ZhihuCrawler) entryFromArticle(article *zhihuArticle) pageEntry {
	articleID := rawID(article.ID)

	body := article.Content
	if body == "" {
		body = article.Excerpt
	}
	body = "【专栏】" + article.Title + ": " + normalize.Truncate(normalize.StripTags(body), zhihuBodyLimit)

	postedAt := time.Unix(article.Created, 0).In(time.Local)

	return pageEntry{
		postedAt: postedAt,
		hasTime:  article.Created != 0,
		item: database.NewItem{
			Platform: database.PlatformZhihu,
			// Prefixed so article ids cannot collide with answer ids
			// inside the per-platform unique constraint.
			ItemID:     "article_" + articleID,
			AuthorID:   article.Author.ID,
			AuthorName: article.Author.Name,
			Body:       body,
			URL:        "https://zhuanlan.zhihu.com/p/" + articleID,
			PostedAt:   postedAt,
			FetchedAt:  time.Now().UTC(),
			HeatScore:  normalize.HeatScore(article.VoteupCount, article.CommentCount, 0),
			Topic:      article.Title,
		},
	}
}

// rawID renders a JSON id that may arrive as either a number or a string.
func rawID(raw json.RawMessage) string {
	return strings.Trim(string(raw), `"`)
}
