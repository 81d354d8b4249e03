package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

var _ ItemRepository = (*ItemRepositoryImpl)(nil)

// ItemRepositoryImpl handles database operations for sentiment items
type ItemRepositoryImpl struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepositoryImpl {
	return &ItemRepositoryImpl{db: db}
}

// Exists checks whether an item with the given dedup key is already stored
func (r *ItemRepositoryImpl) Exists(platform, itemID string) (bool, error) {
	var one int
	err := r.db.QueryRow(`
		SELECT 1 FROM sentiment_items WHERE platform = ? AND item_id = ? LIMIT 1
	`, platform, itemID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check item existence: %w", err)
	}
	return true, nil
}

// BulkInsert writes each item that is not already present and returns the
// count actually written. The conflict clause makes the insert atomic under
// concurrent writers, so callers never race on a separate existence check.
// Items already stored are silently dropped, even if their content differs.
func (r *ItemRepositoryImpl) BulkInsert(items []NewItem) (int, error) {
	inserted := 0

	for _, item := range items {
		var extraJSON interface{}
		if item.Extra != nil {
			data, err := json.Marshal(item.Extra)
			if err != nil {
				return inserted, fmt.Errorf("failed to marshal extra payload: %w", err)
			}
			extraJSON = string(data)
		}

		result, err := r.db.Exec(`
			INSERT INTO sentiment_items (
				platform, item_id, root_id, author_id, author_name,
				body, url, posted_at, fetched_at, symbol, target_ref,
				heat_score, topic, extra
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(platform, item_id) DO NOTHING
		`, item.Platform, item.ItemID, item.RootID, item.AuthorID, item.AuthorName,
			item.Body, item.URL, item.PostedAt, item.FetchedAt, item.Symbol, item.TargetRef,
			item.HeatScore, item.Topic, extraJSON)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert item %s/%s: %w", item.Platform, item.ItemID, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("failed to get rows affected: %w", err)
		}
		inserted += int(affected)
	}

	return inserted, nil
}

// ListItems returns items matching the filter, most recent first, along
// with the total count before pagination.
func (r *ItemRepositoryImpl) ListItems(filter ItemFilter) ([]Item, int, error) {
	where := "WHERE 1=1"
	var args []interface{}

	if filter.Platform != "" {
		where += " AND platform = ?"
		args = append(args, filter.Platform)
	}
	if filter.Symbol != "" {
		where += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.From != nil {
		where += " AND posted_at >= ?"
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where += " AND posted_at <= ?"
		args = append(args, *filter.To)
	}
	if filter.Keyword != "" {
		where += " AND (body LIKE ? OR author_name LIKE ? OR topic LIKE ?)"
		pattern := "%" + filter.Keyword + "%"
		args = append(args, pattern, pattern, pattern)
	}

	var total int
	err := r.db.QueryRow("SELECT COUNT(*) FROM sentiment_items "+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count items: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	query := `
		SELECT id, platform, item_id, root_id, author_id, author_name,
		       body, url, posted_at, fetched_at, symbol, target_ref,
		       heat_score, sentiment_score, topic, extra, created_at
		FROM sentiment_items ` + where + `
		ORDER BY posted_at DESC
		LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, total, nil
}

// GetItemCount returns the total number of stored items
func (r *ItemRepositoryImpl) GetItemCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM sentiment_items").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}

func scanItem(rows *sql.Rows) (Item, error) {
	var item Item
	var targetRef sql.NullInt64
	var sentiment sql.NullFloat64
	var extra sql.NullString

	err := rows.Scan(
		&item.ID, &item.Platform, &item.ItemID, &item.RootID, &item.AuthorID,
		&item.AuthorName, &item.Body, &item.URL, &item.PostedAt, &item.FetchedAt,
		&item.Symbol, &targetRef, &item.HeatScore, &sentiment, &item.Topic,
		&extra, &item.CreatedAt,
	)
	if err != nil {
		return item, fmt.Errorf("failed to scan item row: %w", err)
	}

	if targetRef.Valid {
		item.TargetRef = &targetRef.Int64
	}
	if sentiment.Valid {
		item.SentimentScore = &sentiment.Float64
	}
	if extra.Valid && extra.String != "" {
		if err := json.Unmarshal([]byte(extra.String), &item.Extra); err != nil {
			return item, fmt.Errorf("failed to unmarshal extra payload: %w", err)
		}
	}

	return item, nil
}
