package database

import (
	"database/sql"
	"fmt"
)

var _ FeedRepository = (*feedRepository)(nil)

type feedRepository struct {
	db *sql.DB
}

func NewFeedRepository(store *Store) FeedRepository {
	return &feedRepository{db: store.Feeds}
}

// InsertFeed inserts a feed record. A feed whose source URL is already
// present is rejected by the unique index on xmlurl and reported as not
// inserted rather than as an error, which is what makes re-subscribing
// idempotent.
func (r *feedRepository) InsertFeed(feed Feed) (bool, error) {
	res, err := r.db.Exec(`
		INSERT INTO feeds (id, title, xmlurl, link, description, favicon, category)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(xmlurl) DO NOTHING
	`, feed.ID, feed.Title, feed.XMLURL, feed.Link, feed.Description, feed.Favicon, feed.Category)
	if err != nil {
		return false, fmt.Errorf("failed to insert feed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	return affected > 0, nil
}

func (r *feedRepository) GetFeeds() ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT id, title, xmlurl, link, description, favicon, category, created_at, updated_at
		FROM feeds
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *feedRepository) GetFeedByID(id string) (*Feed, error) {
	return r.getFeed("id = ?", id)
}

func (r *feedRepository) GetFeedByURL(xmlurl string) (*Feed, error) {
	return r.getFeed("xmlurl = ?", xmlurl)
}

func (r *feedRepository) getFeed(where string, arg any) (*Feed, error) {
	row := r.db.QueryRow(`
		SELECT id, title, xmlurl, link, description, favicon, category, created_at, updated_at
		FROM feeds
		WHERE `+where, arg)

	feed, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &feed, nil
}

// UpdateFeedTitle updates the feed's display title and category reference.
// Denormalized copies on articles are synced separately by the article
// repository.
func (r *feedRepository) UpdateFeedTitle(id, title string, category *string) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET title = ?, category = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, title, category, id)
	if err != nil {
		return fmt.Errorf("failed to update feed title: %w", err)
	}

	return nil
}

func (r *feedRepository) UpdateFeedFavicon(id, favicon string) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET favicon = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, favicon, id)
	if err != nil {
		return fmt.Errorf("failed to update feed favicon: %w", err)
	}

	return nil
}

func (r *feedRepository) DeleteFeed(id string) error {
	_, err := r.db.Exec("DELETE FROM feeds WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}

	return nil
}

func (r *feedRepository) GetFeedCount() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}

	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (Feed, error) {
	var feed Feed
	var category sql.NullString

	err := row.Scan(&feed.ID, &feed.Title, &feed.XMLURL, &feed.Link, &feed.Description,
		&feed.Favicon, &category, &feed.CreatedAt, &feed.UpdatedAt)
	if err == sql.ErrNoRows {
		return feed, err
	}
	if err != nil {
		return feed, fmt.Errorf("failed to scan feed row: %w", err)
	}

	if category.Valid {
		feed.Category = &category.String
	}

	return feed, nil
}
