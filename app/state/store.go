// Package state holds the UI-facing derived copy of persisted state. Every
// dispatch persists through the collection stores first and mutates the
// in-memory copy only on confirmation, so the two can never drift apart.
package state

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/quillfeed/quillfeed/app/database"
	"github.com/quillfeed/quillfeed/app/feed"
)

type EventType string

const (
	EventFeedAdded      EventType = "feed_added"
	EventFeedDeleted    EventType = "feed_deleted"
	EventFeedUpdated    EventType = "feed_updated"
	EventArticlesAdded  EventType = "articles_added"
	EventCategoryChange EventType = "category_change"
)

type Event struct {
	Type    EventType
	FeedID  string
	Payload any
}

const eventBufferSize = 64

type Store struct {
	feedRepo     database.FeedRepository
	articleRepo  database.ArticleRepository
	categoryRepo database.CategoryRepository

	mu         sync.RWMutex
	feeds      []database.Feed
	categories []database.Category

	subMu       sync.Mutex
	subscribers []chan Event
}

func NewStore(feedRepo database.FeedRepository, articleRepo database.ArticleRepository,
	categoryRepo database.CategoryRepository) *Store {
	return &Store{
		feedRepo:     feedRepo,
		articleRepo:  articleRepo,
		categoryRepo: categoryRepo,
	}
}

// Load seeds the derived state from the collection stores.
func (s *Store) Load() error {
	feeds, err := s.feedRepo.GetFeeds()
	if err != nil {
		return fmt.Errorf("failed to load feeds: %w", err)
	}

	categories, err := s.categoryRepo.GetCategories()
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}

	s.mu.Lock()
	s.feeds = feeds
	s.categories = categories
	s.mu.Unlock()

	return nil
}

// Subscribe returns a channel carrying state-change events. Slow consumers
// drop events rather than blocking dispatch.
func (s *Store) Subscribe() <-chan Event {
	ch := make(chan Event, eventBufferSize)
	s.subMu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.subMu.Unlock()
	return ch
}

func (s *Store) publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			slog.Debug("Dropping state event for slow subscriber", "type", string(ev.Type))
		}
	}
}

// AddFeed persists a feed record and, once confirmed, prepends it to the
// derived feed list. A feed already present under the same derived ID is
// reconciled instead of duplicated.
func (s *Store) AddFeed(f database.Feed) (bool, error) {
	inserted, err := s.feedRepo.InsertFeed(f)
	if err != nil {
		return false, err
	}

	if inserted {
		s.mu.Lock()
		if !s.hasFeedLocked(f.ID) {
			s.feeds = append([]database.Feed{f}, s.feeds...)
		}
		s.mu.Unlock()
		s.publish(Event{Type: EventFeedAdded, FeedID: f.ID, Payload: f})
	}

	return inserted, nil
}

func (s *Store) hasFeedLocked(id string) bool {
	for _, f := range s.feeds {
		if f.ID == id {
			return true
		}
	}
	return false
}

// AddArticles persists article records and reports how many were actually
// added. The derived state holds no article mirror; subscribers re-query on
// the emitted event.
func (s *Store) AddArticles(articles []database.Article) (int, error) {
	added, err := s.articleRepo.InsertArticles(articles)
	if err != nil {
		return 0, err
	}

	if added > 0 && len(articles) > 0 {
		s.publish(Event{Type: EventArticlesAdded, FeedID: articles[0].FeedID, Payload: added})
	}

	return added, nil
}

// DeleteFeed cascades: every article owned by the feed goes first, then the
// feed record, then the derived copy.
func (s *Store) DeleteFeed(id string) error {
	if _, err := s.articleRepo.DeleteByFeedID(id); err != nil {
		return err
	}

	if err := s.feedRepo.DeleteFeed(id); err != nil {
		return err
	}

	s.mu.Lock()
	for i, f := range s.feeds {
		if f.ID == id {
			s.feeds = append(s.feeds[:i], s.feeds[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.publish(Event{Type: EventFeedDeleted, FeedID: id})

	return nil
}

// UpdateFeedTitle renames a feed and syncs the denormalized title/category
// copies carried on its articles.
func (s *Store) UpdateFeedTitle(id, title string, category *string) error {
	if err := s.feedRepo.UpdateFeedTitle(id, title, category); err != nil {
		return err
	}

	if _, err := s.articleRepo.UpdateArticleFeedTitle(id, title, category); err != nil {
		return err
	}

	s.mu.Lock()
	for i := range s.feeds {
		if s.feeds[i].ID == id {
			s.feeds[i].Title = title
			s.feeds[i].Category = category
			break
		}
	}
	s.mu.Unlock()

	s.publish(Event{Type: EventFeedUpdated, FeedID: id})

	return nil
}

// Feeds returns the derived feed list with titles truncated for display.
func (s *Store) Feeds() []database.Feed {
	s.mu.RLock()
	defer s.mu.RUnlock()

	feeds := make([]database.Feed, len(s.feeds))
	copy(feeds, s.feeds)
	for i := range feeds {
		feeds[i].Title = feed.DisplayTitle(feeds[i].Title)
	}
	return feeds
}

func (s *Store) Categories() []database.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]database.Category, len(s.categories))
	copy(categories, s.categories)
	return categories
}

// AddCategory persists a category and mirrors it on confirmation.
func (s *Store) AddCategory(title string) (bool, error) {
	inserted, err := s.categoryRepo.InsertCategory(title)
	if err != nil {
		return false, err
	}

	if inserted {
		s.mu.Lock()
		s.categories = append(s.categories, database.Category{Title: title})
		s.mu.Unlock()
		s.publish(Event{Type: EventCategoryChange})
	}

	return inserted, nil
}

// DeleteCategory removes a category. Feeds referencing it keep the dangling
// reference and render as uncategorized.
func (s *Store) DeleteCategory(title string) error {
	if err := s.categoryRepo.DeleteCategory(title); err != nil {
		return err
	}

	s.mu.Lock()
	for i, c := range s.categories {
		if c.Title == title {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.publish(Event{Type: EventCategoryChange})

	return nil
}
