package api

import (
	"context"

	"github.com/quillfeed/quillfeed/app/database"
	"github.com/quillfeed/quillfeed/app/feed"
	"github.com/quillfeed/quillfeed/app/ingest"
	"github.com/quillfeed/quillfeed/app/state"
	appsync "github.com/quillfeed/quillfeed/app/sync"
)

type IngestQueueInterface interface {
	Ingest(ctx context.Context, batch ingest.Batch) <-chan ingest.Result
}

var _ IngestQueueInterface = (*ingest.Queue)(nil)

type SyncerInterface interface {
	Run(ctx context.Context) (bool, error)
}

var _ SyncerInterface = (*appsync.Syncer)(nil)

type ContentExtractorInterface interface {
	Run(ctx context.Context, link string) (string, error)
}

var _ ContentExtractorInterface = (*feed.ContentExtractor)(nil)

type Handler struct {
	store       *state.Store
	feedRepo    database.FeedRepository
	articleRepo database.ArticleRepository
	queue       IngestQueueInterface
	syncer      SyncerInterface
	extractor   ContentExtractorInterface
}
