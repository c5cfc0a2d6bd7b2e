package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quillfeed/quillfeed/app/cfg"
	"github.com/quillfeed/quillfeed/app/feed"
	"github.com/quillfeed/quillfeed/app/ingest"
)

type MockTokenSource struct {
	token string
}

func (m *MockTokenSource) AccessToken() string {
	return m.token
}

type MockEnqueuer struct {
	batches []ingest.Batch
}

func (m *MockEnqueuer) Ingest(ctx context.Context, batch ingest.Batch) <-chan ingest.Result {
	m.batches = append(m.batches, batch)

	results := make(chan ingest.Result, len(batch.Sources))
	for _, source := range batch.Sources {
		url, _ := source.Resolve()
		results <- ingest.Result{Source: source, URL: url, State: ingest.StateDone}
	}
	close(results)

	return results
}

func testCfg(endpoint string) {
	cfg.Set(&cfg.Cfg{
		SyncEndpoint: endpoint,
		UserAgent:    "Quillfeed/test",
	})
}

func TestRunWithoutTokenSkipsNetwork(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	testCfg(server.URL)
	queue := &MockEnqueuer{}
	syncer := NewSyncer(server.Client(), &MockTokenSource{}, queue)

	ran, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if ran {
		t.Error("Expected Run to report it did not sync")
	}
	if requests != 0 {
		t.Errorf("Expected no HTTP requests, got: %d", requests)
	}
	if len(queue.batches) != 0 {
		t.Errorf("Expected nothing enqueued, got %d batches", len(queue.batches))
	}
}

func TestRunEnqueuesSubscriptions(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"subscriptions":[
			{"url":"https://example.com/a.xml","title":"Feed A"},
			{"url":"https://example.com/b.xml","title":"Feed B"}
		]}`))
	}))
	defer server.Close()

	testCfg(server.URL)
	queue := &MockEnqueuer{}
	syncer := NewSyncer(server.Client(), &MockTokenSource{token: "secret-token"}, queue)

	ran, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !ran {
		t.Error("Expected Run to report it synced")
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Unexpected Authorization header: %s", gotAuth)
	}

	if len(queue.batches) != 1 {
		t.Fatalf("Expected 1 batch, got: %d", len(queue.batches))
	}
	batch := queue.batches[0]
	if batch.Mode != ingest.ModeNewSubscription {
		t.Errorf("Expected new-subscription mode, got: %v", batch.Mode)
	}
	if len(batch.Sources) != 2 {
		t.Fatalf("Expected 2 sources, got: %d", len(batch.Sources))
	}

	source, ok := batch.Sources[0].(feed.SyncedSource)
	if !ok {
		t.Fatalf("Expected SyncedSource, got: %T", batch.Sources[0])
	}
	if source.FeedURL != "https://example.com/a.xml" || source.Title != "Feed A" {
		t.Errorf("Unexpected source: %+v", source)
	}
}

func TestRunEmptyListEnqueuesNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"subscriptions":[]}`))
	}))
	defer server.Close()

	testCfg(server.URL)
	queue := &MockEnqueuer{}
	syncer := NewSyncer(server.Client(), &MockTokenSource{token: "secret-token"}, queue)

	ran, err := syncer.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !ran {
		t.Error("Expected Run to report it synced")
	}
	if len(queue.batches) != 0 {
		t.Errorf("Expected nothing enqueued, got %d batches", len(queue.batches))
	}
}

func TestRunAuthFailurePropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	testCfg(server.URL)
	queue := &MockEnqueuer{}
	syncer := NewSyncer(server.Client(), &MockTokenSource{token: "expired"}, queue)

	ran, err := syncer.Run(context.Background())
	if err == nil {
		t.Fatal("Expected error for unauthorized response")
	}
	if ran {
		t.Error("Expected Run to report failure")
	}
	if len(queue.batches) != 0 {
		t.Errorf("Expected nothing enqueued, got %d batches", len(queue.batches))
	}
}
