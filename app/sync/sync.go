// Package sync pulls the remote subscription list and feeds it into the
// ingestion queue.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/quillfeed/quillfeed/app/cfg"
	"github.com/quillfeed/quillfeed/app/feed"
	"github.com/quillfeed/quillfeed/app/ingest"
)

// TokenSource yields the bearer credential for the subscription endpoint.
// An empty token means sync is not configured.
type TokenSource interface {
	AccessToken() string
}

// Enqueuer accepts ingestion batches built from the remote list.
type Enqueuer interface {
	Ingest(ctx context.Context, batch ingest.Batch) <-chan ingest.Result
}

type subscription struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type subscriptionList struct {
	Subscriptions []subscription `json:"subscriptions"`
}

// Syncer fetches the remote subscription list and enqueues every entry as a
// synced source. Feeds already present locally dedupe at the persistence
// layer, so running it repeatedly is harmless.
type Syncer struct {
	httpClient *http.Client
	tokens     TokenSource
	queue      Enqueuer
	endpoint   string
	userAgent  string
}

func NewSyncer(httpClient *http.Client, tokens TokenSource, queue Enqueuer) *Syncer {
	appCfg := cfg.Get()

	return &Syncer{
		httpClient: httpClient,
		tokens:     tokens,
		queue:      queue,
		endpoint:   appCfg.SyncEndpoint,
		userAgent:  appCfg.UserAgent,
	}
}

// Run performs one sync pass. Without a stored access token it reports
// (false, nil) and touches no network. With one, it fetches the subscription
// list, enqueues each entry, and returns once the batch has drained.
func (s *Syncer) Run(ctx context.Context) (bool, error) {
	token := s.tokens.AccessToken()
	if token == "" {
		slog.Debug("Subscription sync skipped, no access token configured")
		return false, nil
	}

	list, err := s.fetchSubscriptions(ctx, token)
	if err != nil {
		return false, fmt.Errorf("failed to fetch subscription list: %w", err)
	}

	slog.Info("Subscription list fetched", "count", len(list.Subscriptions))

	if len(list.Subscriptions) == 0 {
		return true, nil
	}

	sources := make([]feed.Source, 0, len(list.Subscriptions))
	for _, sub := range list.Subscriptions {
		sources = append(sources, feed.SyncedSource{
			FeedURL: sub.URL,
			Title:   sub.Title,
		})
	}

	results := s.queue.Ingest(ctx, ingest.Batch{
		Sources: sources,
		Mode:    ingest.ModeNewSubscription,
	})

	for result := range results {
		if result.Err != nil {
			slog.Warn("Synced subscription failed to ingest", "url", result.URL, "error", result.Err)
		}
	}

	return true, nil
}

func (s *Syncer) fetchSubscriptions(ctx context.Context, token string) (*subscriptionList, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	var list subscriptionList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode subscription list: %w", err)
	}

	return &list, nil
}
