package database

import (
	"time"
)

type Feed struct {
	ID          string // Derived from the feed's canonical source URL
	Title       string
	XMLURL      string // Canonical feed source URL, unique per feed
	Link        string // Homepage URL from the feed's <link> element
	Description string
	Favicon     string
	Category    *string // Nullable reference to a category title
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Article struct {
	ID             string
	FeedID         string
	FeedTitle      string // Denormalized copy, kept in sync on feed rename
	Category       string // Denormalized copy, kept in sync on feed rename
	GUID           string // Derived from the article link, unique per article
	Title          string
	Link           string
	PubDate        time.Time
	Content        string
	Favicon        string
	Read           bool
	Favourite      bool
	Offline        bool // Cached locally for disconnected reading
	OfflineContent string
	CreatedAt      time.Time
}

type Category struct {
	Title     string // Unique, serves as the category's identity
	CreatedAt time.Time
}
