package database

import (
	"path/filepath"
	"testing"
	"time"
)

// newTestDB opens a migrated database in a per-test temp directory. A file
// is used instead of :memory: because each pooled connection would see its
// own private in-memory database.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func testItem(itemID string, postedAt time.Time) NewItem {
	return NewItem{
		Platform:   PlatformWeibo,
		ItemID:     itemID,
		AuthorID:   "10001",
		AuthorName: "测试博主",
		Body:       "看好后市",
		URL:        "https://m.weibo.cn/status/" + itemID,
		PostedAt:   postedAt,
		FetchedAt:  time.Now().UTC(),
		HeatScore:  10,
	}
}

func TestBulkInsertDeduplicates(t *testing.T) {
	db := newTestDB(t)
	repo := NewItemRepository(db)

	now := time.Now().UTC().Truncate(time.Second)
	items := []NewItem{
		testItem("1001", now.Add(-1*time.Hour)),
		testItem("1002", now.Add(-2*time.Hour)),
		testItem("1003", now.Add(-3*time.Hour)),
	}

	inserted, err := repo.BulkInsert(items)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if inserted != 3 {
		t.Errorf("Expected 3 inserted, got %d", inserted)
	}

	// A second pass over the same batch must insert nothing.
	inserted, err = repo.BulkInsert(items)
	if err != nil {
		t.Fatalf("Expected no error on duplicate insert, got %v", err)
	}
	if inserted != 0 {
		t.Errorf("Expected 0 inserted on duplicate batch, got %d", inserted)
	}

	count, err := repo.GetItemCount()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 stored items, got %d", count)
	}
}

func TestBulkInsertMixedBatch(t *testing.T) {
	db := newTestDB(t)
	repo := NewItemRepository(db)

	now := time.Now().UTC().Truncate(time.Second)

	if _, err := repo.BulkInsert([]NewItem{testItem("2001", now)}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	inserted, err := repo.BulkInsert([]NewItem{
		testItem("2001", now), // already present
		testItem("2002", now),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if inserted != 1 {
		t.Errorf("Expected 1 newly inserted, got %d", inserted)
	}
}

func TestBulkInsertSameIDDifferentPlatform(t *testing.T) {
	db := newTestDB(t)
	repo := NewItemRepository(db)

	now := time.Now().UTC().Truncate(time.Second)
	weiboItem := testItem("3001", now)
	zhihuItem := testItem("3001", now)
	zhihuItem.Platform = PlatformZhihu

	inserted, err := repo.BulkInsert([]NewItem{weiboItem, zhihuItem})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if inserted != 2 {
		t.Errorf("Expected 2 inserted, uniqueness is per platform, got %d", inserted)
	}
}

func TestExists(t *testing.T) {
	db := newTestDB(t)
	repo := NewItemRepository(db)

	now := time.Now().UTC().Truncate(time.Second)
	if _, err := repo.BulkInsert([]NewItem{testItem("4001", now)}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	exists, err := repo.Exists(PlatformWeibo, "4001")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !exists {
		t.Error("Expected item to exist")
	}

	exists, err = repo.Exists(PlatformWeibo, "9999")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if exists {
		t.Error("Expected item to not exist")
	}

	exists, err = repo.Exists(PlatformZhihu, "4001")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if exists {
		t.Error("Expected same id on another platform to not exist")
	}
}

func TestListItemsFilters(t *testing.T) {
	db := newTestDB(t)
	repo := NewItemRepository(db)

	now := time.Now().UTC().Truncate(time.Second)

	maotai := testItem("5001", now.Add(-1*time.Hour))
	maotai.Symbol = "SH600519"
	maotai.Body = "茅台三季报超预期"

	zhihuPost := testItem("5002", now.Add(-2*time.Hour))
	zhihuPost.Platform = PlatformZhihu

	old := testItem("5003", now.Add(-72*time.Hour))

	if _, err := repo.BulkInsert([]NewItem{maotai, zhihuPost, old}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Platform filter
	items, total, err := repo.ListItems(ItemFilter{Platform: PlatformZhihu})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ItemID != "5002" {
		t.Errorf("Expected only the zhihu item, got total=%d items=%v", total, items)
	}

	// Symbol filter
	items, total, err = repo.ListItems(ItemFilter{Symbol: "SH600519"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if total != 1 || items[0].ItemID != "5001" {
		t.Errorf("Expected only the tagged item, got total=%d", total)
	}

	// Keyword filter matches body text
	items, total, err = repo.ListItems(ItemFilter{Keyword: "三季报"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if total != 1 || items[0].ItemID != "5001" {
		t.Errorf("Expected keyword match on body, got total=%d", total)
	}

	// Time window filter
	from := now.Add(-24 * time.Hour)
	items, total, err = repo.ListItems(ItemFilter{From: &from})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if total != 2 {
		t.Errorf("Expected 2 items in the last day, got %d", total)
	}

	// Newest first
	if len(items) == 2 && items[0].PostedAt.Before(items[1].PostedAt) {
		t.Error("Expected items ordered newest first")
	}
}

func TestListItemsPagination(t *testing.T) {
	db := newTestDB(t)
	repo := NewItemRepository(db)

	now := time.Now().UTC().Truncate(time.Second)
	var batch []NewItem
	for i := 0; i < 5; i++ {
		batch = append(batch, testItem(
			"600"+string(rune('0'+i)),
			now.Add(-time.Duration(i)*time.Hour),
		))
	}
	if _, err := repo.BulkInsert(batch); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	items, total, err := repo.ListItems(ItemFilter{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if total != 5 {
		t.Errorf("Expected total 5, got %d", total)
	}
	if len(items) != 2 {
		t.Errorf("Expected 2 items on page 2, got %d", len(items))
	}
	if len(items) == 2 && items[0].ItemID != "6002" {
		t.Errorf("Expected page 2 to start at 6002, got %s", items[0].ItemID)
	}
}

func TestBulkInsertEmptyBatch(t *testing.T) {
	db := newTestDB(t)
	repo := NewItemRepository(db)

	inserted, err := repo.BulkInsert(nil)
	if err != nil {
		t.Fatalf("Expected no error for empty batch, got %v", err)
	}
	if inserted != 0 {
		t.Errorf("Expected 0 inserted, got %d", inserted)
	}
}
