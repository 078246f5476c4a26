package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rvellore/etfscope/internal/config"
	"github.com/rvellore/etfscope/internal/lake"
	"github.com/rvellore/etfscope/internal/news"
	"github.com/rvellore/etfscope/internal/pipeline"
	"github.com/rvellore/etfscope/pkg/models"
)

func testConfig() *config.Config {
	return &config.Config{
		API: config.APIConfig{CORSOrigins: []string{"*"}},
	}
}

func testLake(t *testing.T) *lake.Lake {
	t.Helper()
	l, err := lake.New(t.TempDir())
	if err != nil {
		t.Fatalf("lake.New: %v", err)
	}
	return l
}

func seedSnapshot(t *testing.T, l *lake.Lake, symbol string) {
	t.Helper()
	snap := &models.ETFSnapshot{
		Symbol:    symbol,
		Timestamp: time.Now().UTC(),
		Holdings: []models.HoldingRecord{
			{Symbol: "AAPL", Name: "Apple Inc", WeightPct: 0.0661, WeightBps: 661},
			{Symbol: "MSFT", Name: "Microsoft Corp", WeightPct: 0.0589, WeightBps: 589},
		},
	}
	if err := l.Save(symbol, snap, lake.AreaProcessed); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}
}

func newTestServer(t *testing.T, runner Runner) (*Server, *lake.Lake) {
	t.Helper()
	l := testLake(t)
	srv := NewServer(testConfig(), l, news.New(), runner)
	return srv, l
}

func doRequest(t *testing.T, srv *Server, method, path string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not valid JSON envelope: %v\n%s", err, rec.Body.String())
	}
	return rec, resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, resp := doRequest(t, srv, http.MethodGet, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !resp.Success {
		t.Error("Success = false")
	}
}

func TestListETFs(t *testing.T) {
	srv, l := newTestServer(t, nil)

	rec, resp := doRequest(t, srv, http.MethodGet, "/api/etfs")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	symbols, ok := resp.Data.([]interface{})
	if !ok || len(symbols) != 0 {
		t.Errorf("empty lake should list zero symbols, got %v", resp.Data)
	}

	seedSnapshot(t, l, "VTI")
	_, resp = doRequest(t, srv, http.MethodGet, "/api/etfs")
	symbols, _ = resp.Data.([]interface{})
	if len(symbols) != 1 || symbols[0] != "VTI" {
		t.Errorf("symbols = %v, want [VTI]", resp.Data)
	}
}

func TestGetETF(t *testing.T) {
	srv, l := newTestServer(t, nil)
	seedSnapshot(t, l, "VTI")

	rec, resp := doRequest(t, srv, http.MethodGet, "/api/etfs/VTI")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, resp.Error)
	}
	snap, ok := resp.Data.(map[string]interface{})
	if !ok || snap["symbol"] != "VTI" {
		t.Errorf("Data = %v", resp.Data)
	}
}

func TestGetETFNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, resp := doRequest(t, srv, http.MethodGet, "/api/etfs/MISSING")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp.Success {
		t.Error("Success = true on 404")
	}
	if resp.Error == "" {
		t.Error("Error message empty")
	}
}

func TestGetHoldings(t *testing.T) {
	srv, l := newTestServer(t, nil)
	seedSnapshot(t, l, "QQQ")

	rec, resp := doRequest(t, srv, http.MethodGet, "/api/etfs/QQQ/holdings")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	holdings, ok := resp.Data.([]interface{})
	if !ok || len(holdings) != 2 {
		t.Fatalf("holdings = %v, want 2 rows", resp.Data)
	}
	first := holdings[0].(map[string]interface{})
	if first["symbol"] != "AAPL" {
		t.Errorf("first holding = %v", first)
	}
}

func TestGetHoldingsNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, _ := doRequest(t, srv, http.MethodGet, "/api/etfs/MISSING/holdings")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestNewsDegradesToEmptyList(t *testing.T) {
	// Point the news service at a dead feed; the endpoint should still
	// answer 200 with an empty list.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	t.Cleanup(dead.Close)

	l := testLake(t)
	srv := NewServer(testConfig(), l, news.NewWithFeed(dead.URL+"/rss?q=%s"), nil)

	rec, resp := doRequest(t, srv, http.MethodGet, "/api/etfs/VTI/news")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !resp.Success {
		t.Error("Success = false")
	}
	articles, ok := resp.Data.([]interface{})
	if !ok || len(articles) != 0 {
		t.Errorf("Data = %v, want empty list", resp.Data)
	}
}

func TestPipelineRunDisabled(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, _ := doRequest(t, srv, http.MethodPost, "/api/pipeline/run")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestPipelineRunAcceptedAndGuarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	runner := func(ctx context.Context, sink pipeline.EventSink) models.PipelineRunResult {
		once.Do(func() { close(started) })
		<-release
		return models.PipelineRunResult{SymbolsProcessed: 1}
	}

	srv, _ := newTestServer(t, runner)

	rec, _ := doRequest(t, srv, http.MethodPost, "/api/pipeline/run")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first run status = %d, want 202", rec.Code)
	}

	<-started
	rec, resp := doRequest(t, srv, http.MethodPost, "/api/pipeline/run")
	if rec.Code != http.StatusConflict {
		t.Fatalf("concurrent run status = %d, want 409", rec.Code)
	}
	if resp.Success {
		t.Error("Success = true on 409")
	}

	close(release)

	// The in-flight flag clears once the run completes.
	deadline := time.After(2 * time.Second)
	for {
		rec, _ = doRequest(t, srv, http.MethodPost, "/api/pipeline/run")
		if rec.Code == http.StatusAccepted {
			break
		}
		select {
		case <-deadline:
			t.Fatal("run flag never cleared")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
