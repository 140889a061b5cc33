package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lysyi3m/insightpress/app/news"
)

var _ ItemCacheRepository = (*ItemRepository)(nil)

// ItemRepository handles the per-day cache of collected items
type ItemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// SaveDay replaces the cached items of a day, keeping their order.
func (r *ItemRepository) SaveDay(day string, items []news.Item) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM fetched_items WHERE fetch_date = ?`, day); err != nil {
		return fmt.Errorf("failed to clear cached items: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO fetched_items (
			fetch_date, position, title, url, source_name, source_weight,
			published_at, engagement, summary, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for i, item := range items {
		var published sql.NullInt64
		if item.PublishedAt != nil {
			published = sql.NullInt64{Int64: item.PublishedAt.Unix(), Valid: true}
		}
		var engagement sql.NullInt64
		if item.Engagement != nil {
			engagement = sql.NullInt64{Int64: int64(*item.Engagement), Valid: true}
		}

		_, err := stmt.Exec(day, i, item.Title, item.URL, item.SourceName, item.SourceWeight,
			published, engagement, item.Summary, now)
		if err != nil {
			return fmt.Errorf("failed to store item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cached items: %w", err)
	}
	return nil
}

// LoadDay returns the cached items of a day in collection order. An empty
// result means the day has not been collected yet.
func (r *ItemRepository) LoadDay(day string) ([]news.Item, error) {
	rows, err := r.db.Query(`
		SELECT title, url, source_name, source_weight, published_at, engagement, summary
		FROM fetched_items
		WHERE fetch_date = ?
		ORDER BY position
	`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached items: %w", err)
	}
	defer rows.Close()

	var items []news.Item
	for rows.Next() {
		var item news.Item
		var published, engagement sql.NullInt64

		err := rows.Scan(&item.Title, &item.URL, &item.SourceName, &item.SourceWeight,
			&published, &engagement, &item.Summary)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cached item: %w", err)
		}

		if published.Valid {
			item.PublishedAt = news.TimePtr(time.Unix(published.Int64, 0).UTC())
		}
		if engagement.Valid {
			item.Engagement = news.IntPtr(int(engagement.Int64))
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cached items: %w", err)
	}
	return items, nil
}

// PruneBefore drops cache days older than day.
func (r *ItemRepository) PruneBefore(day string) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM fetched_items WHERE fetch_date < ?`, day)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cached items: %w", err)
	}
	return res.RowsAffected()
}
