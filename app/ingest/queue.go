package ingest

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quillfeed/quillfeed/app/cfg"
	"github.com/quillfeed/quillfeed/app/database"
	"github.com/quillfeed/quillfeed/app/feed"
	"github.com/quillfeed/quillfeed/app/notify"
)

// DefaultWorkerCount is the ingestion concurrency ceiling. A subscription
// sync can carry hundreds of sources at once; two in-flight fetch+persist
// tasks keep batches moving without hammering third-party origins.
const DefaultWorkerCount = 2

const taskQueueSize = 300

const taskTimeout = 5 * time.Minute

// Queue converts batches of feed sources into persisted feeds and articles
// with a fixed-size worker pool. Sources from concurrent batches share the
// same workers; duplicate writes across overlapping batches are resolved by
// the unique indexes, not by the queue.
type Queue struct {
	parser          FetchParser
	articleRepo     database.ArticleRepository
	dispatcher      Dispatcher
	notifier        notify.Notifier
	faviconTemplate string
	workerCount     int
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	tasks           chan *task
}

type task struct {
	source  feed.Source
	batch   Batch
	state   State
	results chan<- Result
	pending *sync.WaitGroup
}

func NewQueue(parser FetchParser, articleRepo database.ArticleRepository,
	dispatcher Dispatcher, notifier notify.Notifier) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	c := cfg.Get()

	workerCount := c.WorkerCount
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}

	return &Queue{
		parser:          parser,
		articleRepo:     articleRepo,
		dispatcher:      dispatcher,
		notifier:        notifier,
		faviconTemplate: c.FaviconTemplate,
		workerCount:     workerCount,
		ctx:             ctx,
		cancel:          cancel,
		tasks:           make(chan *task, taskQueueSize),
	}
}

func (q *Queue) Start() {
	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

func (q *Queue) Stop() {
	q.cancel()
	q.wg.Wait()
	close(q.tasks)
}

// Ingest enqueues every source of the batch and returns a channel carrying
// one Result per source. The channel closes once the batch is fully drained,
// which is the batch's completion hook. Enqueueing blocks when the task
// buffer is full, so oversized batches apply back-pressure instead of
// shedding sources. A source that cannot be resolved fails alone; the rest
// of the batch proceeds.
func (q *Queue) Ingest(ctx context.Context, batch Batch) <-chan Result {
	results := make(chan Result, len(batch.Sources))
	pending := &sync.WaitGroup{}

	for _, source := range batch.Sources {
		t := &task{
			source:  source,
			batch:   batch,
			state:   StateQueued,
			results: results,
			pending: pending,
		}

		pending.Add(1)
		select {
		case q.tasks <- t:
		case <-ctx.Done():
			t.fail("", ctx.Err())
		case <-q.ctx.Done():
			t.fail("", q.ctx.Err())
		}
	}

	go func() {
		pending.Wait()
		close(results)
	}()

	return results
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()

	for {
		select {
		case t, ok := <-q.tasks:
			if !ok {
				return
			}
			q.execute(id, t)

		case <-q.ctx.Done():
			return
		}
	}
}

// execute runs one source through fetch, normalize and persist. The worker
// slot is always released afterwards, whatever the outcome.
func (q *Queue) execute(workerID int, t *task) {
	url, err := t.source.Resolve()
	if err != nil {
		slog.Warn("Source has no usable URL, skipping", "worker_id", workerID)
		t.fail("", err)
		return
	}

	// Hard ceiling per task, over and above the parser's own fetch timeout,
	// so a stalled source cannot hold a worker slot indefinitely.
	taskCtx, cancel := context.WithTimeout(q.ctx, taskTimeout)
	defer cancel()

	t.state = StateFetching
	doc, err := q.parser.Parse(taskCtx, url)
	if err != nil {
		slog.Warn("Feed fetch/parse failed", "worker_id", workerID, "url", url, "error", err)
		t.fail(url, &FetchParseError{URL: url, Err: err})
		return
	}
	t.state = StateParsed

	// Favicon failure is non-fatal: an empty result means no favicon.
	favicon := feed.ResolveFavicon(t.batch.FaviconOverride, doc.Meta.Link, q.faviconTemplate)

	t.state = StatePersisting

	switch t.batch.Mode {
	case ModeRefresh:
		q.persistRefresh(workerID, t, url, doc, favicon)
	default:
		q.persistNewSubscription(workerID, t, url, doc, favicon)
	}
}

// persistNewSubscription creates the feed record exactly once, before its
// articles, routing both through the UI-state dispatch path.
func (q *Queue) persistNewSubscription(workerID int, t *task, url string, doc *feed.Document, favicon string) {
	feedID := feed.DeriveID(doc.Meta.XMLURL)
	title := cmp.Or(doc.Meta.Title, sourceTitle(t.source), doc.Meta.XMLURL)

	feedRecord := database.Feed{
		ID:          feedID,
		Title:       title,
		XMLURL:      doc.Meta.XMLURL,
		Link:        doc.Meta.Link,
		Description: doc.Meta.Description,
		Favicon:     favicon,
	}

	inserted, err := q.dispatcher.AddFeed(feedRecord)
	if err != nil {
		t.fail(url, &PersistenceError{URL: url, Err: err})
		return
	}
	if !inserted {
		slog.Debug("Feed already subscribed", "url", doc.Meta.XMLURL, "feed_id", feedID)
	}

	articles := buildArticles(doc, feedID, title, "", favicon)
	added, err := q.dispatcher.AddArticles(articles)
	if err != nil {
		t.fail(url, &PersistenceError{URL: url, Err: err})
		return
	}

	slog.Info("Subscription ingested", "worker_id", workerID, "url", url,
		"feed_id", feedID, "total", len(articles), "new", added)

	t.done(url, feedID, added)
}

// persistRefresh writes articles directly to the store. Duplicate GUIDs are
// expected on refresh and count as "not new"; the user only hears about it
// when something was actually added.
func (q *Queue) persistRefresh(workerID int, t *task, url string, doc *feed.Document, favicon string) {
	refresh, ok := t.source.(feed.RefreshSource)
	if !ok {
		t.fail(url, fmt.Errorf("refresh batch requires refresh sources, got %T", t.source))
		return
	}

	if refresh.Favicon != "" {
		favicon = refresh.Favicon
	}
	category := ""
	if refresh.Category != nil {
		category = *refresh.Category
	}

	articles := buildArticles(doc, refresh.FeedID, refresh.Title, category, favicon)
	added, err := q.articleRepo.InsertArticles(articles)
	if err != nil {
		t.fail(url, &PersistenceError{URL: url, Err: err})
		return
	}

	slog.Info("Feed refreshed", "worker_id", workerID, "url", url,
		"feed_id", refresh.FeedID, "total", len(articles), "new", added)

	if added > 0 {
		q.notifier.Notify("Quillfeed", fmt.Sprintf("%d articles added", added))
	}

	t.done(url, refresh.FeedID, added)
}

// buildArticles normalizes parsed posts into persistence-ready records:
// owning feed ID, favicon, link fallback to the feed source URL, and the
// GUID derived from that link.
func buildArticles(doc *feed.Document, feedID, feedTitle, category, favicon string) []database.Article {
	articles := make([]database.Article, 0, len(doc.Posts))
	for _, post := range doc.Posts {
		link := cmp.Or(post.Link, doc.Meta.XMLURL)
		articles = append(articles, database.Article{
			ID:        uuid.NewString(),
			FeedID:    feedID,
			FeedTitle: feedTitle,
			Category:  category,
			GUID:      feed.DeriveID(link),
			Title:     post.Title,
			Link:      link,
			PubDate:   post.PublishedAt,
			Content:   post.Content,
			Favicon:   favicon,
		})
	}
	return articles
}

func sourceTitle(s feed.Source) string {
	switch src := s.(type) {
	case feed.ImportedSource:
		return src.Title
	case feed.SyncedSource:
		return src.Title
	case feed.RefreshSource:
		return src.Title
	default:
		return ""
	}
}

func (t *task) fail(url string, err error) {
	t.state = StateFailed
	t.results <- Result{Source: t.source, URL: url, State: StateFailed, Err: err}
	t.pending.Done()
}

func (t *task) done(url, feedID string, added int) {
	t.state = StateDone
	t.results <- Result{Source: t.source, URL: url, FeedID: feedID, State: StateDone, NewArticles: added}
	t.pending.Done()
}
