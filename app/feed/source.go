package feed

import (
	"errors"
)

// ErrNoSourceURL marks an ingestion input with no usable fetch URL. It is a
// per-source configuration error: the source fails, its batch continues.
var ErrNoSourceURL = errors.New("source has no usable URL")

// Source is one feed-ingestion input. Each variant carries the fetch URL
// under the field its origin supplies, resolved at the boundary before the
// source enters the ingestion queue.
type Source interface {
	// Resolve returns the URL to fetch, or ErrNoSourceURL when the variant
	// carries an empty one.
	Resolve() (string, error)
}

// ManualSource is a feed added by hand through the UI.
type ManualSource struct {
	URL string
}

func (s ManualSource) Resolve() (string, error) {
	if s.URL == "" {
		return "", ErrNoSourceURL
	}
	return s.URL, nil
}

// ImportedSource is a feed read from an OPML import.
type ImportedSource struct {
	XMLURL string
	Title  string
}

func (s ImportedSource) Resolve() (string, error) {
	if s.XMLURL == "" {
		return "", ErrNoSourceURL
	}
	return s.XMLURL, nil
}

// SyncedSource is a feed pulled from the remote subscription-list provider.
type SyncedSource struct {
	FeedURL string
	Title   string
}

func (s SyncedSource) Resolve() (string, error) {
	if s.FeedURL == "" {
		return "", ErrNoSourceURL
	}
	return s.FeedURL, nil
}

// RefreshSource re-ingests an already-subscribed feed. It carries the known
// feed identity and denormalized attributes so refresh never re-derives the
// feed record.
type RefreshSource struct {
	FeedID   string
	XMLURL   string
	Title    string
	Category *string
	Favicon  string
}

func (s RefreshSource) Resolve() (string, error) {
	if s.XMLURL == "" {
		return "", ErrNoSourceURL
	}
	return s.XMLURL, nil
}
