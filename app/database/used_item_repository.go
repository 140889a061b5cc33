package database

import (
	"fmt"
	"time"
)

var _ UsedItemRepository = (*UsedRepository)(nil)

type UsedRepository struct {
	db *DB
}

func NewUsedRepository(db *DB) *UsedRepository {
	return &UsedRepository{db: db}
}

// MarkUsed records drafted stories. Marking a story again refreshes its
// timestamp.
func (r *UsedRepository) MarkUsed(items []UsedItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		_, err := tx.Exec(`
			INSERT INTO used_items (url, title, used_at) VALUES (?, ?, ?)
			ON CONFLICT(url) DO UPDATE SET
				title = excluded.title,
				used_at = excluded.used_at
		`, item.URL, item.Title, item.UsedAt.Unix())
		if err != nil {
			return fmt.Errorf("failed to mark item used: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit used items: %w", err)
	}
	return nil
}

// UsedSince returns the set of URLs used at or after since.
func (r *UsedRepository) UsedSince(since time.Time) (map[string]bool, error) {
	rows, err := r.db.Query(`SELECT url FROM used_items WHERE used_at >= ?`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query used items: %w", err)
	}
	defer rows.Close()

	used := make(map[string]bool)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan used item: %w", err)
		}
		used[url] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate used items: %w", err)
	}
	return used, nil
}

func (r *UsedRepository) PruneBefore(before time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM used_items WHERE used_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune used items: %w", err)
	}
	return res.RowsAffected()
}
