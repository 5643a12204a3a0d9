package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/extract"
	healthuc "github.com/kailas-cloud/docrag/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/docrag/internal/usecase/indexing"
	queryuc "github.com/kailas-cloud/docrag/internal/usecase/query"
)

type mockIndexer struct {
	triggerFn func(trigger, dir string) bool
	deleteFn  func(ctx context.Context, filename string) (int, int, error)
	listFn    func(ctx context.Context) ([]indexinguc.DocumentInfo, error)

	lastTrigger string
	lastDir     string
	lastDelete  string
}

func (m *mockIndexer) Trigger(trigger, dir string) bool {
	m.lastTrigger = trigger
	m.lastDir = dir
	if m.triggerFn != nil {
		return m.triggerFn(trigger, dir)
	}
	return true
}

func (m *mockIndexer) Delete(ctx context.Context, filename string) (int, int, error) {
	m.lastDelete = filename
	if m.deleteFn != nil {
		return m.deleteFn(ctx, filename)
	}
	return 0, 0, nil
}

func (m *mockIndexer) ListDocuments(ctx context.Context) ([]indexinguc.DocumentInfo, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

type mockAnswerer struct {
	retrieveFn func(ctx context.Context, req queryuc.Request) ([]domain.Retrieved, error)
	streamFn   func(ctx context.Context, req queryuc.Request) (<-chan string, error)

	lastRequest queryuc.Request
}

func (m *mockAnswerer) Retrieve(ctx context.Context, req queryuc.Request) ([]domain.Retrieved, error) {
	m.lastRequest = req
	if m.retrieveFn != nil {
		return m.retrieveFn(ctx, req)
	}
	return nil, nil
}

func (m *mockAnswerer) Stream(ctx context.Context, req queryuc.Request) (<-chan string, error) {
	m.lastRequest = req
	if m.streamFn != nil {
		return m.streamFn(ctx, req)
	}
	out := make(chan string)
	close(out)
	return out, nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(ctx context.Context) healthuc.Report {
	return m.report
}

// fragmentChan builds a closed channel pre-filled with fragments.
func fragmentChan(fragments ...string) <-chan string {
	out := make(chan string, len(fragments))
	for _, f := range fragments {
		out <- f
	}
	close(out)
	return out
}

type testServer struct {
	indexer  *mockIndexer
	answerer *mockAnswerer
	health   *mockHealth
	dataDir  string
	handler  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		indexer:  &mockIndexer{},
		answerer: &mockAnswerer{},
		health:   &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}},
		dataDir:  t.TempDir(),
	}

	srv := NewServer(ts.indexer, ts.answerer, ts.health, extract.NewRegistry(), ts.dataDir, zap.NewNop())
	r := chirouter.NewRouter()
	srv.Routes(r)
	ts.handler = r
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}
