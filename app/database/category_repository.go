package database

import (
	"database/sql"
	"fmt"
)

var _ CategoryRepository = (*categoryRepository)(nil)

type categoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(store *Store) CategoryRepository {
	return &categoryRepository{db: store.Categories}
}

func (r *categoryRepository) InsertCategory(title string) (bool, error) {
	res, err := r.db.Exec(`
		INSERT INTO categories (title) VALUES (?)
		ON CONFLICT(title) DO NOTHING
	`, title)
	if err != nil {
		return false, fmt.Errorf("failed to insert category: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	return affected > 0, nil
}

func (r *categoryRepository) GetCategories() ([]Category, error) {
	rows, err := r.db.Query("SELECT title, created_at FROM categories ORDER BY title")
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.Title, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", err)
	}

	return categories, nil
}

// DeleteCategory removes the category record only. Feeds referencing the
// deleted title keep the dangling reference and are treated as uncategorized
// by consumers.
func (r *categoryRepository) DeleteCategory(title string) error {
	_, err := r.db.Exec("DELETE FROM categories WHERE title = ?", title)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	return nil
}
