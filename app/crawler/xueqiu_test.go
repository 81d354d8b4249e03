package crawler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crystalsense/crystal/app/database"
)

func xueqiuStatusJSON(id int64, postedAt time.Time) map[string]interface{} {
	return map[string]interface{}{
		"id":            id,
		"text":          "<p>茅台三季报超预期</p>",
		"target":        "/1234567/100",
		"created_at":    postedAt.UnixMilli(),
		"like_count":    8,
		"reply_count":   3,
		"retweet_count": 1,
		"user": map[string]interface{}{
			"id":          int64(1234567),
			"screen_name": "雪球用户",
		},
		"symbols": []map[string]interface{}{
			{"symbol": "SH600519"},
		},
	}
}

func TestXueqiuSymbolTimelineCursor(t *testing.T) {
	now := time.Now()
	maxIDs := []string{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			// token priming request
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.URL.Path != "/v4/statuses/stock_timeline.json" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "SH600519" {
			t.Errorf("Expected symbol SH600519, got %s", got)
		}

		maxID := r.URL.Query().Get("max_id")
		maxIDs = append(maxIDs, maxID)

		var list []map[string]interface{}
		if maxID == "" {
			list = []map[string]interface{}{
				xueqiuStatusJSON(300, now.Add(-1*time.Hour)),
				xueqiuStatusJSON(200, now.Add(-2*time.Hour)),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"list": list})
	}))
	defer server.Close()

	crawler := newXueqiu(nil, Options{BaseURL: server.URL, PageDelay: time.Millisecond})

	target := database.WatchTarget{
		ID:         11,
		Platform:   database.PlatformXueqiu,
		TargetType: database.TargetTypeSymbol,
		Symbol:     "SH600519",
	}

	items, err := crawler.Fetch(context.Background(), target, now.Add(-24*time.Hour), now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}

	// Second request carries the last seen id as the cursor.
	if len(maxIDs) != 2 || maxIDs[0] != "" || maxIDs[1] != "200" {
		t.Errorf("Expected max_id progression [\"\" 200], got %v", maxIDs)
	}

	item := items[0]
	if item.ItemID != "300" {
		t.Errorf("Expected item id 300, got %s", item.ItemID)
	}
	if item.Symbol != "SH600519" {
		t.Errorf("Expected symbol tag SH600519, got %s", item.Symbol)
	}
	if item.URL != "https://xueqiu.com/1234567/100" {
		t.Errorf("Unexpected URL: %s", item.URL)
	}
	if item.HeatScore != 17 { // 8 + 3*2 + 1*3
		t.Errorf("Expected heat score 17, got %v", item.HeatScore)
	}
	if item.Extra == nil {
		t.Fatal("Expected extra payload with symbols")
	}
}

func TestXueqiuTokenPriming(t *testing.T) {
	now := time.Now()
	primingRequests := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			primingRequests++
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"list": []map[string]interface{}{}})
	}))
	defer server.Close()

	// Without xq_a_token the crawler primes once before API calls.
	crawler := newXueqiu(&Credentials{Cookies: map[string]string{"u": "123"}}, Options{
		BaseURL:   server.URL,
		PageDelay: time.Millisecond,
	})

	_, _ = crawler.FetchByKeyword(context.Background(), "茅台", now.Add(-time.Hour), now)
	_, _ = crawler.FetchByKeyword(context.Background(), "白酒", now.Add(-time.Hour), now)

	if primingRequests != 1 {
		t.Errorf("Expected exactly 1 priming request, got %d", primingRequests)
	}

	// A token in the credential bundle skips priming entirely.
	primingRequests = 0
	tokenCrawler := newXueqiu(&Credentials{Cookies: map[string]string{"xq_a_token": "tok"}}, Options{
		BaseURL:   server.URL,
		PageDelay: time.Millisecond,
	})
	_, _ = tokenCrawler.FetchByKeyword(context.Background(), "茅台", now.Add(-time.Hour), now)

	if primingRequests != 0 {
		t.Errorf("Expected no priming requests with token, got %d", primingRequests)
	}
}

func TestXueqiuUserTimeline(t *testing.T) {
	now := time.Now()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.URL.Path != "/v4/statuses/user_timeline.json" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}

		var statuses []map[string]interface{}
		if r.URL.Query().Get("page") == "1" {
			statuses = []map[string]interface{}{
				xueqiuStatusJSON(400, now.Add(-time.Hour)),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"statuses": statuses})
	}))
	defer server.Close()

	crawler := newXueqiu(nil, Options{BaseURL: server.URL, PageDelay: time.Millisecond})

	target := database.WatchTarget{
		ID:         12,
		Platform:   database.PlatformXueqiu,
		TargetType: database.TargetTypeAccount,
		ExternalID: "1234567",
	}

	items, err := crawler.Fetch(context.Background(), target, now.Add(-24*time.Hour), now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if items[0].Body == "" || items[0].Body[0] == '<' {
		t.Errorf("Expected HTML stripped from body, got %q", items[0].Body)
	}
	if items[0].TargetRef == nil || *items[0].TargetRef != 12 {
		t.Errorf("Expected target ref 12, got %v", items[0].TargetRef)
	}
}
