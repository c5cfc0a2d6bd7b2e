package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quillfeed/quillfeed/app/cfg"
	"github.com/quillfeed/quillfeed/app/database"
	"github.com/quillfeed/quillfeed/app/feed"
	"github.com/quillfeed/quillfeed/app/ingest"
	"github.com/quillfeed/quillfeed/app/opml"
	"github.com/quillfeed/quillfeed/app/state"
)

func NewHandler(store *state.Store, feedRepo database.FeedRepository,
	articleRepo database.ArticleRepository, queue IngestQueueInterface,
	syncer SyncerInterface, extractor ContentExtractorInterface) *Handler {
	return &Handler{
		store:       store,
		feedRepo:    feedRepo,
		articleRepo: articleRepo,
		queue:       queue,
		syncer:      syncer,
		extractor:   extractor,
	}
}

func (h *Handler) ListFeeds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"feeds": h.store.Feeds()})
}

type createFeedRequest struct {
	URL     string `json:"url" binding:"required"`
	Favicon string `json:"favicon"`
}

func (h *Handler) CreateFeed(c *gin.Context) {
	var req createFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed url"})
		return
	}

	results := h.queue.Ingest(c.Request.Context(), ingest.Batch{
		Sources:         []feed.Source{feed.ManualSource{URL: req.URL}},
		FaviconOverride: req.Favicon,
		Mode:            ingest.ModeNewSubscription,
	})

	result, ok := <-results
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ingestion produced no result"})
		return
	}

	if result.Err != nil {
		slog.Error("Subscription failed", "url", req.URL, "error", result.Err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": result.Err.Error()})
		return
	}

	subscribed, err := h.feedRepo.GetFeedByID(result.FeedID)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed_id", result.FeedID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"feed":         subscribed,
		"new_articles": result.NewArticles,
	})
}

type updateFeedRequest struct {
	Title    string  `json:"title" binding:"required"`
	Category *string `json:"category"`
}

func (h *Handler) UpdateFeed(c *gin.Context) {
	id := c.Param("id")

	var req updateFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed title"})
		return
	}

	existing, err := h.feedRepo.GetFeedByID(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	if err := h.store.UpdateFeedTitle(id, req.Title, req.Category); err != nil {
		slog.Error("Feed update failed", "feed_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update feed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) DeleteFeed(c *gin.Context) {
	id := c.Param("id")

	existing, err := h.feedRepo.GetFeedByID(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	if err := h.store.DeleteFeed(id); err != nil {
		slog.Error("Feed deletion failed", "feed_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete feed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RefreshFeeds re-ingests every subscribed feed and reports how many new
// articles arrived. Refresh reuses stored feed identity, so unchanged feeds
// add nothing.
func (h *Handler) RefreshFeeds(c *gin.Context) {
	feeds, err := h.feedRepo.GetFeeds()
	if err != nil {
		slog.Error("Database error", "operation", "get_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if len(feeds) == 0 {
		c.JSON(http.StatusOK, gin.H{"refreshed": 0, "new_articles": 0})
		return
	}

	sources := make([]feed.Source, 0, len(feeds))
	for _, f := range feeds {
		sources = append(sources, feed.RefreshSource{
			FeedID:   f.ID,
			XMLURL:   f.XMLURL,
			Title:    f.Title,
			Category: f.Category,
			Favicon:  f.Favicon,
		})
	}

	results := h.queue.Ingest(c.Request.Context(), ingest.Batch{
		Sources: sources,
		Mode:    ingest.ModeRefresh,
	})

	refreshed := 0
	newArticles := 0
	for result := range results {
		if result.Err != nil {
			slog.Warn("Feed refresh failed", "url", result.URL, "error", result.Err)
			continue
		}
		refreshed++
		newArticles += result.NewArticles
	}

	c.JSON(http.StatusOK, gin.H{"refreshed": refreshed, "new_articles": newArticles})
}

func (h *Handler) ListArticles(c *gin.Context) {
	var articles []database.Article
	var err error

	if feedID := c.Query("feed_id"); feedID != "" {
		articles, err = h.articleRepo.GetArticlesByFeedID(feedID)
	} else {
		articles, err = h.articleRepo.GetArticles()
	}
	if err != nil {
		slog.Error("Database error", "operation", "get_articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"articles": articles, "total": len(articles)})
}

func (h *Handler) GetArticle(c *gin.Context) {
	article, err := h.articleRepo.GetArticle(c.Param("id"))
	if err != nil {
		slog.Error("Database error", "operation", "get_article", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	c.JSON(http.StatusOK, article)
}

type updateArticleRequest struct {
	Read      *bool `json:"read"`
	Favourite *bool `json:"favourite"`
	Offline   *bool `json:"offline"`
}

// UpdateArticle flips per-article flags. Marking an article offline fetches
// and caches its readable content; marking it online drops the cache.
func (h *Handler) UpdateArticle(c *gin.Context) {
	id := c.Param("id")

	var req updateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	article, err := h.articleRepo.GetArticle(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_article", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if article == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	if req.Read != nil {
		if err := h.articleRepo.MarkRead(id, *req.Read); err != nil {
			slog.Error("Article update failed", "article_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update article"})
			return
		}
	}

	if req.Favourite != nil {
		if err := h.articleRepo.MarkFavourite(id, *req.Favourite); err != nil {
			slog.Error("Article update failed", "article_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update article"})
			return
		}
	}

	if req.Offline != nil {
		if err := h.setOffline(c, article, *req.Offline); err != nil {
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) setOffline(c *gin.Context, article *database.Article, offline bool) error {
	content := ""

	if offline {
		extracted, err := h.extractor.Run(c.Request.Context(), article.Link)
		if err != nil {
			slog.Error("Content extraction failed", "article_id", article.ID, "link", article.Link, "error", err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to cache article content"})
			return err
		}
		content = extracted
	}

	if err := h.articleRepo.MarkOffline(article.ID, offline, content); err != nil {
		slog.Error("Article update failed", "article_id", article.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update article"})
		return err
	}

	return nil
}

func (h *Handler) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.store.Categories()})
}

type createCategoryRequest struct {
	Title string `json:"title" binding:"required"`
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing category title"})
		return
	}

	created, err := h.store.AddCategory(req.Title)
	if err != nil {
		slog.Error("Category creation failed", "title", req.Title, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create category"})
		return
	}

	if !created {
		c.JSON(http.StatusOK, gin.H{"created": false})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"created": true})
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	if err := h.store.DeleteCategory(c.Param("title")); err != nil {
		slog.Error("Category deletion failed", "title", c.Param("title"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete category"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ImportOPML subscribes to every feed listed in the uploaded OPML document.
// Feeds already subscribed dedupe at the persistence layer.
func (h *Handler) ImportOPML(c *gin.Context) {
	sources, err := opml.Parse(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid OPML document"})
		return
	}

	if len(sources) == 0 {
		c.JSON(http.StatusOK, gin.H{"imported": 0, "failed": 0})
		return
	}

	batchSources := make([]feed.Source, 0, len(sources))
	for _, source := range sources {
		batchSources = append(batchSources, source)
	}

	results := h.queue.Ingest(c.Request.Context(), ingest.Batch{
		Sources: batchSources,
		Mode:    ingest.ModeNewSubscription,
	})

	imported := 0
	failed := 0
	for result := range results {
		if result.Err != nil {
			slog.Warn("OPML entry failed to import", "url", result.URL, "error", result.Err)
			failed++
			continue
		}
		imported++
	}

	c.JSON(http.StatusOK, gin.H{"imported": imported, "failed": failed})
}

func (h *Handler) ExportOPML(c *gin.Context) {
	feeds, err := h.feedRepo.GetFeeds()
	if err != nil {
		slog.Error("Database error", "operation", "get_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	document, err := opml.Export("Quillfeed subscriptions", feeds)
	if err != nil {
		slog.Error("OPML export failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export subscriptions"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="subscriptions.opml"`)
	c.Data(http.StatusOK, "application/xml; charset=utf-8", document)
}

func (h *Handler) RunSync(c *gin.Context) {
	ran, err := h.syncer.Run(c.Request.Context())
	if err != nil {
		slog.Error("Subscription sync failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Subscription sync failed"})
		return
	}

	if !ran {
		c.JSON(http.StatusOK, gin.H{"synced": false, "reason": "no access token configured"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"synced": true})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"version": cfg.Get().Version,
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}

	c.JSON(http.StatusOK, health)
}
