package database

type FeedRepository interface {
	InsertFeed(feed Feed) (bool, error)
	GetFeeds() ([]Feed, error)
	GetFeedByID(id string) (*Feed, error)
	GetFeedByURL(xmlurl string) (*Feed, error)
	UpdateFeedTitle(id, title string, category *string) error
	UpdateFeedFavicon(id, favicon string) error
	DeleteFeed(id string) error
	GetFeedCount() (int, error)
}

type ArticleRepository interface {
	InsertArticles(articles []Article) (int, error)
	GetArticles() ([]Article, error)
	GetArticlesByFeedID(feedID string) ([]Article, error)
	GetArticle(id string) (*Article, error)
	UpdateArticleFeedTitle(feedID, feedTitle string, category *string) (int, error)
	MarkRead(id string, read bool) error
	MarkFavourite(id string, favourite bool) error
	MarkOffline(id string, offline bool, content string) error
	DeleteByFeedID(feedID string) (int, error)
	GetArticleCount(feedID string) (int, error)
}

type CategoryRepository interface {
	InsertCategory(title string) (bool, error)
	GetCategories() ([]Category, error)
	DeleteCategory(title string) error
}
