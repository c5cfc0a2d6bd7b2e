package ingest

import (
	"context"
	"fmt"

	"github.com/quillfeed/quillfeed/app/database"
	"github.com/quillfeed/quillfeed/app/feed"
)

// Mode selects how a batch's results are routed.
type Mode int

const (
	// ModeNewSubscription creates the feed record before its articles and
	// routes both through the UI-state dispatch path.
	ModeNewSubscription Mode = iota
	// ModeRefresh reuses the known feed identity and writes articles
	// directly to the store, notifying when anything new was added.
	ModeRefresh
)

// State tracks a source through the per-source state machine
// Queued -> Fetching -> Parsed -> Persisting -> Done, with Failed terminal
// from Fetching or Persisting. A failed source never blocks its siblings.
type State int

const (
	StateQueued State = iota
	StateFetching
	StateParsed
	StatePersisting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateFetching:
		return "fetching"
	case StateParsed:
		return "parsed"
	case StatePersisting:
		return "persisting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Batch is a set of sources submitted together: one OPML import, one
// subscription sync, one manual refresh-all.
type Batch struct {
	Sources         []feed.Source
	FaviconOverride string
	Mode            Mode
}

// Result reports the terminal state of one source in a batch.
type Result struct {
	Source      feed.Source
	URL         string
	FeedID      string
	State       State
	NewArticles int
	Err         error
}

// FetchParser is the fetch/parse collaborator consumed by the queue.
type FetchParser interface {
	Parse(ctx context.Context, url string) (*feed.Document, error)
}

var _ FetchParser = (*feed.Parser)(nil)

// Dispatcher is the UI-state dispatch surface. New subscriptions route
// through it so the reactive store and the collection stores update together.
type Dispatcher interface {
	AddFeed(f database.Feed) (bool, error)
	AddArticles(articles []database.Article) (int, error)
}

// FetchParseError marks a network or parse failure for a single source.
type FetchParseError struct {
	URL string
	Err error
}

func (e *FetchParseError) Error() string {
	return fmt.Sprintf("failed to fetch/parse %s: %v", e.URL, e.Err)
}

func (e *FetchParseError) Unwrap() error { return e.Err }

// PersistenceError marks a store write failure for a single source. Unique
// index rejections are not persistence errors, they count as "not new".
type PersistenceError struct {
	URL string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist %s: %v", e.URL, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
