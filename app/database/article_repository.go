package database

import (
	"database/sql"
	"fmt"
)

var _ ArticleRepository = (*articleRepository)(nil)

type articleRepository struct {
	db *sql.DB
}

func NewArticleRepository(store *Store) ArticleRepository {
	return &articleRepository{db: store.Articles}
}

// InsertArticles inserts a set of articles and returns the number actually
// added. Articles whose derived GUID already exists are rejected by the
// unique index and counted as "not new" rather than treated as a failure:
// re-fetching unchanged remote content therefore adds zero records.
func (r *articleRepository) InsertArticles(articles []Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO articles (id, feed_id, feed_title, category, guid, title, link,
			pub_date, content, favicon, read, favourite, offline)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guid) DO NOTHING
	`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, a := range articles {
		res, err := stmt.Exec(a.ID, a.FeedID, a.FeedTitle, a.Category, a.GUID, a.Title,
			a.Link, a.PubDate, a.Content, a.Favicon, a.Read, a.Favourite, a.Offline)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to insert article %s: %w", a.GUID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to read insert result: %w", err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit articles: %w", err)
	}

	return inserted, nil
}

func (r *articleRepository) GetArticles() ([]Article, error) {
	return r.queryArticles(`
		SELECT id, feed_id, feed_title, category, guid, title, link, pub_date,
			content, favicon, read, favourite, offline, offline_content, created_at
		FROM articles
		ORDER BY pub_date DESC
	`)
}

func (r *articleRepository) GetArticlesByFeedID(feedID string) ([]Article, error) {
	return r.queryArticles(`
		SELECT id, feed_id, feed_title, category, guid, title, link, pub_date,
			content, favicon, read, favourite, offline, offline_content, created_at
		FROM articles
		WHERE feed_id = ?
		ORDER BY pub_date DESC
	`, feedID)
}

func (r *articleRepository) queryArticles(query string, args ...any) ([]Article, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var a Article
		err := rows.Scan(&a.ID, &a.FeedID, &a.FeedTitle, &a.Category, &a.GUID, &a.Title,
			&a.Link, &a.PubDate, &a.Content, &a.Favicon, &a.Read, &a.Favourite,
			&a.Offline, &a.OfflineContent, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

func (r *articleRepository) GetArticle(id string) (*Article, error) {
	var a Article
	err := r.db.QueryRow(`
		SELECT id, feed_id, feed_title, category, guid, title, link, pub_date,
			content, favicon, read, favourite, offline, offline_content, created_at
		FROM articles
		WHERE id = ?
	`, id).Scan(&a.ID, &a.FeedID, &a.FeedTitle, &a.Category, &a.GUID, &a.Title,
		&a.Link, &a.PubDate, &a.Content, &a.Favicon, &a.Read, &a.Favourite,
		&a.Offline, &a.OfflineContent, &a.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	return &a, nil
}

// UpdateArticleFeedTitle syncs the denormalized feed title and category on
// every article owned by the feed. Returns the number of updated rows.
func (r *articleRepository) UpdateArticleFeedTitle(feedID, feedTitle string, category *string) (int, error) {
	cat := ""
	if category != nil {
		cat = *category
	}

	res, err := r.db.Exec(`
		UPDATE articles
		SET feed_title = ?, category = ?
		WHERE feed_id = ?
	`, feedTitle, cat, feedID)
	if err != nil {
		return 0, fmt.Errorf("failed to update article feed title: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read update result: %w", err)
	}

	return int(affected), nil
}

func (r *articleRepository) MarkRead(id string, read bool) error {
	return r.setFlag(id, "read", read)
}

func (r *articleRepository) MarkFavourite(id string, favourite bool) error {
	return r.setFlag(id, "favourite", favourite)
}

// MarkOffline flips the offline flag and stores the cached readable content
// alongside it. Clearing the flag also drops the cached content.
func (r *articleRepository) MarkOffline(id string, offline bool, content string) error {
	if !offline {
		content = ""
	}

	_, err := r.db.Exec(`
		UPDATE articles
		SET offline = ?, offline_content = ?
		WHERE id = ?
	`, offline, content, id)
	if err != nil {
		return fmt.Errorf("failed to update offline flag: %w", err)
	}

	return nil
}

func (r *articleRepository) setFlag(id, column string, value bool) error {
	// column is one of the fixed flag names, never user input
	_, err := r.db.Exec("UPDATE articles SET "+column+" = ? WHERE id = ?", value, id)
	if err != nil {
		return fmt.Errorf("failed to update %s flag: %w", column, err)
	}

	return nil
}

// DeleteByFeedID removes every article owned by the feed. Used by the feed
// delete cascade.
func (r *articleRepository) DeleteByFeedID(feedID string) (int, error) {
	res, err := r.db.Exec("DELETE FROM articles WHERE feed_id = ?", feedID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete articles: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}

	return int(affected), nil
}

func (r *articleRepository) GetArticleCount(feedID string) (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM articles WHERE feed_id = ?", feedID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get article count: %w", err)
	}

	return count, nil
}
