package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quillfeed/quillfeed/app/cfg"
	"github.com/quillfeed/quillfeed/app/database"
	"github.com/quillfeed/quillfeed/app/feed"
)

// MockParser implements FetchParser with a configurable per-URL response.
type MockParser struct {
	delay       time.Duration
	failURLs    map[string]bool
	posts       int
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (m *MockParser) Parse(ctx context.Context, url string) (*feed.Document, error) {
	current := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)

	for {
		max := m.maxInFlight.Load()
		if current <= max || m.maxInFlight.CompareAndSwap(max, current) {
			break
		}
	}

	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	if m.failURLs[url] {
		return nil, errors.New("connection refused")
	}

	doc := &feed.Document{
		Meta: feed.Meta{
			Title:  "Feed " + url,
			Link:   "https://example.com",
			XMLURL: url,
		},
	}
	for i := 0; i < m.posts; i++ {
		doc.Posts = append(doc.Posts, feed.Post{
			Title:       fmt.Sprintf("Post %d", i),
			Link:        fmt.Sprintf("%s/post-%d", url, i),
			PublishedAt: time.Now(),
		})
	}
	return doc, nil
}

// MockDispatcher records dispatched feeds and articles.
type MockDispatcher struct {
	mu       sync.Mutex
	feeds    []database.Feed
	articles []database.Article
	err      error
}

func (m *MockDispatcher) AddFeed(f database.Feed) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feeds = append(m.feeds, f)
	return true, nil
}

func (m *MockDispatcher) AddArticles(articles []database.Article) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.articles = append(m.articles, articles...)
	return len(articles), nil
}

// MockArticleRepository implements database.ArticleRepository. Inserted
// GUIDs are remembered so re-ingesting the same content adds zero records.
type MockArticleRepository struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func NewMockArticleRepository() *MockArticleRepository {
	return &MockArticleRepository{seen: make(map[string]bool)}
}

func (m *MockArticleRepository) InsertArticles(articles []database.Article) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, a := range articles {
		if !m.seen[a.GUID] {
			m.seen[a.GUID] = true
			inserted++
		}
	}
	return inserted, nil
}

func (m *MockArticleRepository) GetArticles() ([]database.Article, error) { return nil, nil }
func (m *MockArticleRepository) GetArticlesByFeedID(feedID string) ([]database.Article, error) {
	return nil, nil
}
func (m *MockArticleRepository) GetArticle(id string) (*database.Article, error) { return nil, nil }
func (m *MockArticleRepository) UpdateArticleFeedTitle(feedID, feedTitle string, category *string) (int, error) {
	return 0, nil
}
func (m *MockArticleRepository) MarkRead(id string, read bool) error            { return nil }
func (m *MockArticleRepository) MarkFavourite(id string, favourite bool) error  { return nil }
func (m *MockArticleRepository) MarkOffline(id string, offline bool, c string) error {
	return nil
}
func (m *MockArticleRepository) DeleteByFeedID(feedID string) (int, error)   { return 0, nil }
func (m *MockArticleRepository) GetArticleCount(feedID string) (int, error)  { return 0, nil }

var _ database.ArticleRepository = (*MockArticleRepository)(nil)

// MockNotifier records notifications.
type MockNotifier struct {
	mu            sync.Mutex
	notifications []string
}

func (m *MockNotifier) Notify(title, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, body)
}

func testCfg(workers int) {
	cfg.Set(&cfg.Cfg{
		WorkerCount:     workers,
		FaviconTemplate: "https://www.google.com/s2/favicons?domain=%s",
	})
}

func newTestQueue(parser FetchParser, repo database.ArticleRepository,
	dispatcher Dispatcher, notifier *MockNotifier) *Queue {
	q := NewQueue(parser, repo, dispatcher, notifier)
	q.Start()
	return q
}

func collectResults(results <-chan Result) []Result {
	var out []Result
	for r := range results {
		out = append(out, r)
	}
	return out
}

func TestIngestConcurrencyCeiling(t *testing.T) {
	testCfg(2)

	parser := &MockParser{delay: 30 * time.Millisecond, posts: 1}
	dispatcher := &MockDispatcher{}
	notifier := &MockNotifier{}
	q := newTestQueue(parser, NewMockArticleRepository(), dispatcher, notifier)
	defer q.Stop()

	var sources []feed.Source
	for i := 0; i < 5; i++ {
		sources = append(sources, feed.ManualSource{URL: fmt.Sprintf("https://example.com/feed-%d.xml", i)})
	}

	results := collectResults(q.Ingest(context.Background(), Batch{Sources: sources, Mode: ModeNewSubscription}))

	if len(results) != 5 {
		t.Fatalf("Expected 5 results, got: %d", len(results))
	}
	for _, r := range results {
		if r.State != StateDone {
			t.Errorf("Expected state done, got: %s (err: %v)", r.State, r.Err)
		}
	}

	if max := parser.maxInFlight.Load(); max > 2 {
		t.Errorf("Expected at most 2 in-flight tasks, observed: %d", max)
	}
}

func TestIngestLargeBatchAppliesBackPressure(t *testing.T) {
	testCfg(2)

	// More sources than the task buffer holds: enqueueing must wait for
	// workers to drain slots rather than shed the overflow.
	parser := &MockParser{delay: time.Millisecond, posts: 1}
	dispatcher := &MockDispatcher{}
	q := newTestQueue(parser, NewMockArticleRepository(), dispatcher, &MockNotifier{})
	defer q.Stop()

	total := taskQueueSize + 50
	sources := make([]feed.Source, 0, total)
	for i := 0; i < total; i++ {
		sources = append(sources, feed.ManualSource{URL: fmt.Sprintf("https://example.com/feed-%d.xml", i)})
	}

	results := collectResults(q.Ingest(context.Background(), Batch{Sources: sources, Mode: ModeNewSubscription}))

	if len(results) != total {
		t.Fatalf("Expected %d results, got: %d", total, len(results))
	}
	for _, r := range results {
		if r.State != StateDone {
			t.Fatalf("Expected every source ingested, got: %s (err: %v)", r.State, r.Err)
		}
	}
}

func TestIngestInvalidSourceDoesNotAbortBatch(t *testing.T) {
	testCfg(2)

	parser := &MockParser{posts: 2}
	dispatcher := &MockDispatcher{}
	q := newTestQueue(parser, NewMockArticleRepository(), dispatcher, &MockNotifier{})
	defer q.Stop()

	sources := []feed.Source{
		feed.ManualSource{URL: "https://example.com/a.xml"},
		feed.ManualSource{}, // no usable URL
		feed.ManualSource{URL: "https://example.com/b.xml"},
		feed.ImportedSource{XMLURL: "https://example.com/c.xml"},
		feed.SyncedSource{FeedURL: "https://example.com/d.xml"},
	}

	results := collectResults(q.Ingest(context.Background(), Batch{Sources: sources, Mode: ModeNewSubscription}))

	done := 0
	failed := 0
	for _, r := range results {
		switch r.State {
		case StateDone:
			done++
		case StateFailed:
			failed++
			if !errors.Is(r.Err, feed.ErrNoSourceURL) {
				t.Errorf("Expected ErrNoSourceURL, got: %v", r.Err)
			}
		}
	}

	if done != 4 {
		t.Errorf("Expected 4 ingested sources, got: %d", done)
	}
	if failed != 1 {
		t.Errorf("Expected 1 failed source, got: %d", failed)
	}
	if len(dispatcher.feeds) != 4 {
		t.Errorf("Expected 4 feed records dispatched, got: %d", len(dispatcher.feeds))
	}
	if len(dispatcher.articles) != 8 {
		t.Errorf("Expected 8 article records dispatched, got: %d", len(dispatcher.articles))
	}
}

func TestIngestFetchFailureIsolated(t *testing.T) {
	testCfg(2)

	parser := &MockParser{
		posts:    1,
		failURLs: map[string]bool{"https://example.com/broken.xml": true},
	}
	dispatcher := &MockDispatcher{}
	q := newTestQueue(parser, NewMockArticleRepository(), dispatcher, &MockNotifier{})
	defer q.Stop()

	sources := []feed.Source{
		feed.ManualSource{URL: "https://example.com/ok.xml"},
		feed.ManualSource{URL: "https://example.com/broken.xml"},
	}

	results := collectResults(q.Ingest(context.Background(), Batch{Sources: sources, Mode: ModeNewSubscription}))

	var fetchErr *FetchParseError
	done := 0
	for _, r := range results {
		if r.State == StateDone {
			done++
			continue
		}
		if !errors.As(r.Err, &fetchErr) {
			t.Errorf("Expected FetchParseError, got: %v", r.Err)
		}
	}

	if done != 1 {
		t.Errorf("Expected 1 successful source, got: %d", done)
	}
	if len(dispatcher.feeds) != 1 {
		t.Errorf("Expected 1 feed record, got: %d", len(dispatcher.feeds))
	}
}

func TestRefreshUnchangedContentAddsNothing(t *testing.T) {
	testCfg(2)

	parser := &MockParser{posts: 3}
	repo := NewMockArticleRepository()
	notifier := &MockNotifier{}
	q := newTestQueue(parser, repo, &MockDispatcher{}, notifier)
	defer q.Stop()

	source := feed.RefreshSource{
		FeedID: feed.DeriveID("https://example.com/feed.xml"),
		XMLURL: "https://example.com/feed.xml",
		Title:  "Example",
	}
	batch := Batch{Sources: []feed.Source{source}, Mode: ModeRefresh}

	first := collectResults(q.Ingest(context.Background(), batch))
	if len(first) != 1 || first[0].NewArticles != 3 {
		t.Fatalf("Expected 3 new articles on first refresh, got: %+v", first)
	}
	if len(notifier.notifications) != 1 {
		t.Fatalf("Expected 1 notification, got: %d", len(notifier.notifications))
	}
	if notifier.notifications[0] != "3 articles added" {
		t.Errorf("Unexpected notification body: %s", notifier.notifications[0])
	}

	// Same remote content again: all derived GUIDs already exist.
	second := collectResults(q.Ingest(context.Background(), batch))
	if len(second) != 1 {
		t.Fatalf("Expected 1 result, got: %d", len(second))
	}
	if second[0].State != StateDone {
		t.Errorf("Expected refresh with no new articles to succeed, got: %s (err: %v)", second[0].State, second[0].Err)
	}
	if second[0].NewArticles != 0 {
		t.Errorf("Expected 0 new articles, got: %d", second[0].NewArticles)
	}
	if len(notifier.notifications) != 1 {
		t.Errorf("Expected no notification for an unchanged refresh, got: %d", len(notifier.notifications))
	}
}

func TestIngestFaviconOverride(t *testing.T) {
	testCfg(2)

	parser := &MockParser{posts: 1}
	dispatcher := &MockDispatcher{}
	q := newTestQueue(parser, NewMockArticleRepository(), dispatcher, &MockNotifier{})
	defer q.Stop()

	batch := Batch{
		Sources:         []feed.Source{feed.ManualSource{URL: "https://example.com/feed.xml"}},
		FaviconOverride: "https://cdn.example.com/icon.png",
		Mode:            ModeNewSubscription,
	}

	collectResults(q.Ingest(context.Background(), batch))

	if len(dispatcher.feeds) != 1 {
		t.Fatalf("Expected 1 feed record, got: %d", len(dispatcher.feeds))
	}
	if dispatcher.feeds[0].Favicon != "https://cdn.example.com/icon.png" {
		t.Errorf("Expected favicon override on feed, got: %s", dispatcher.feeds[0].Favicon)
	}
	if dispatcher.articles[0].Favicon != "https://cdn.example.com/icon.png" {
		t.Errorf("Expected favicon override on article, got: %s", dispatcher.articles[0].Favicon)
	}
}

func TestIngestArticleLinkFallback(t *testing.T) {
	testCfg(1)

	// Parser that emits a post without a link of its own.
	parser := &linklessParser{}
	dispatcher := &MockDispatcher{}
	q := newTestQueue(parser, NewMockArticleRepository(), dispatcher, &MockNotifier{})
	defer q.Stop()

	url := "https://example.com/feed.xml"
	collectResults(q.Ingest(context.Background(), Batch{
		Sources: []feed.Source{feed.ManualSource{URL: url}},
		Mode:    ModeNewSubscription,
	}))

	if len(dispatcher.articles) != 1 {
		t.Fatalf("Expected 1 article, got: %d", len(dispatcher.articles))
	}
	a := dispatcher.articles[0]
	if a.Link != url {
		t.Errorf("Expected link fallback to feed source URL, got: %s", a.Link)
	}
	if a.GUID != feed.DeriveID(url) {
		t.Errorf("Expected GUID derived from fallback link, got: %s", a.GUID)
	}
}

type linklessParser struct{}

func (p *linklessParser) Parse(ctx context.Context, url string) (*feed.Document, error) {
	return &feed.Document{
		Meta:  feed.Meta{Title: "Linkless", XMLURL: url},
		Posts: []feed.Post{{Title: "No link", PublishedAt: time.Now()}},
	}, nil
}
