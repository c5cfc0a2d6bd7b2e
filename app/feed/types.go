package feed

import (
	"time"
)

// Document is the normalized result of fetching and parsing one feed URL.
type Document struct {
	Meta  Meta
	Posts []Post
}

type Meta struct {
	Title       string
	Link        string // Homepage URL
	Description string
	XMLURL      string // The URL the document was fetched from
}

type Post struct {
	Title       string
	Link        string
	Content     string
	PublishedAt time.Time
	Authors     []string // Normalized to "email (name)" or "name"
}
