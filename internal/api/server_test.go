package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogsync/internal/api/handlers"
	"catalogsync/internal/config"
	"catalogsync/internal/database"
	"catalogsync/internal/logger"
	"catalogsync/internal/models"
	"catalogsync/internal/services"
	"catalogsync/internal/services/rackbeat"
	"catalogsync/internal/services/shopify"
	"catalogsync/internal/services/shopify/shopifytest"
	"catalogsync/internal/syncer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSource struct {
	products []rackbeat.Product
	err      error
}

func (s *stubSource) FetchAll(context.Context) ([]rackbeat.Product, error) {
	return s.products, s.err
}

type fixture struct {
	server  *Server
	sync    *handlers.SyncHandler
	shopify *shopifytest.Server
}

func newFixture(t *testing.T, run handlers.RunFunc, history handlers.RunHistory, source handlers.SourceCatalog) *fixture {
	t.Helper()
	srv := shopifytest.NewServer(t)
	client := shopify.NewClient(config.ShopifyConfig{
		BaseURL:     srv.URL,
		AccessToken: "shpat_test",
		APIVersion:  shopifytest.APIVersion,
	}, logger.Nop())

	if run == nil {
		run = func(context.Context, syncer.Mode) (*syncer.Summary, error) { return &syncer.Summary{}, nil }
	}
	if source == nil {
		source = &stubSource{}
	}

	syncHandler := handlers.NewSyncHandler(context.Background(), run, history, logger.Nop())
	catalogHandler := handlers.NewCatalogHandler(source, client, logger.Nop())
	cfg := &config.Config{Sync: config.SyncConfig{Mode: config.ModeOverwrite}}

	return &fixture{
		server:  New(cfg, logger.Nop(), syncHandler, catalogHandler),
		sync:    syncHandler,
		shopify: srv,
	}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil, nil, nil)

	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestTriggerSync_RefusesConcurrentRuns(t *testing.T) {
	release := make(chan struct{})
	started := make(chan syncer.Mode, 1)
	run := func(_ context.Context, mode syncer.Mode) (*syncer.Summary, error) {
		started <- mode
		<-release
		return &syncer.Summary{Mode: mode, Total: 2, Created: 2}, nil
	}
	f := newFixture(t, run, nil, nil)

	rec := f.do(http.MethodPost, "/api/v1/sync", `{"mode":"skip-existing"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case mode := <-started:
		assert.Equal(t, syncer.ModeSkipExisting, mode)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not start")
	}

	rec = f.do(http.MethodPost, "/api/v1/sync", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/sync/status", "")
	assert.Equal(t, true, decode(t, rec)["running"])

	close(release)
	f.sync.Wait()

	rec = f.do(http.MethodGet, "/api/v1/sync/status", "")
	status := decode(t, rec)
	assert.Equal(t, false, status["running"])
	last := status["last"].(map[string]interface{})
	assert.Equal(t, float64(2), last["created"])

	// A finished run frees the slot.
	rec = f.do(http.MethodPost, "/api/v1/sync", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	<-started
	f.sync.Wait()
}

func TestTriggerSync_RecordsRunError(t *testing.T) {
	run := func(context.Context, syncer.Mode) (*syncer.Summary, error) {
		return &syncer.Summary{}, errors.New("failed to fetch source catalog")
	}
	f := newFixture(t, run, nil, nil)

	require.Equal(t, http.StatusAccepted, f.do(http.MethodPost, "/api/v1/sync", "").Code)
	f.sync.Wait()

	status := decode(t, f.do(http.MethodGet, "/api/v1/sync/status", ""))
	assert.Equal(t, "failed to fetch source catalog", status["last_error"])
}

func TestTriggerSync_ReadsChunkedBody(t *testing.T) {
	started := make(chan syncer.Mode, 1)
	run := func(_ context.Context, mode syncer.Mode) (*syncer.Summary, error) {
		started <- mode
		return &syncer.Summary{Mode: mode}, nil
	}
	f := newFixture(t, run, nil, nil)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
		req.Body = io.NopCloser(strings.NewReader(body))
		req.ContentLength = -1
		req.TransferEncoding = []string{"chunked"}
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		f.server.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := post(`{"mode":"skip-existing"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "skip-existing", decode(t, rec)["mode"])
	assert.Equal(t, syncer.ModeSkipExisting, <-started)
	f.sync.Wait()

	// An empty chunked body falls back to the configured mode.
	rec = post("")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, syncer.Mode(""), <-started)
	f.sync.Wait()

	rec = post(`{"mode":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerSync_RejectsUnknownMode(t *testing.T) {
	f := newFixture(t, nil, nil, nil)

	rec := f.do(http.MethodPost, "/api/v1/sync", `{"mode":"mirror"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunHistory_Unconfigured(t *testing.T) {
	f := newFixture(t, nil, nil, nil)

	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/api/v1/sync/runs", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/api/v1/sync/runs/abc", "").Code)
}

func TestRunHistory(t *testing.T) {
	db, err := database.New("sqlite://"+filepath.Join(t.TempDir(), "runs.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := database.NewRunStore(db.DB)

	ctx := context.Background()
	run := &models.SyncRun{Mode: "overwrite", Status: models.RunStatusCompleted, StartedAt: time.Now(), Total: 1, Created: 1}
	require.NoError(t, store.StartRun(ctx, run))
	require.NoError(t, store.RecordItem(ctx, &models.SyncItem{RunID: run.ID, Number: "ABC-100", Outcome: models.OutcomeCreated}))

	f := newFixture(t, nil, store, nil)

	rec := f.do(http.MethodGet, "/api/v1/sync/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"], 1)

	rec = f.do(http.MethodGet, "/api/v1/sync/runs/"+run.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, run.ID, data["id"])
	assert.Len(t, data["items"], 1)

	rec = f.do(http.MethodGet, "/api/v1/sync/runs/00000000-0000-0000-0000-000000000000", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type limitRecorder struct {
	limits []int
}

func (h *limitRecorder) ListRuns(_ context.Context, limit int) ([]models.SyncRun, error) {
	h.limits = append(h.limits, limit)
	return []models.SyncRun{}, nil
}

func (h *limitRecorder) GetRun(context.Context, string) (*models.SyncRun, error) {
	return nil, database.ErrRunNotFound
}

func TestRunHistory_ClampsLimit(t *testing.T) {
	history := &limitRecorder{}
	f := newFixture(t, nil, history, nil)

	for _, query := range []string{"", "?limit=5", "?limit=100000"} {
		require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/sync/runs"+query, "").Code)
	}
	assert.Equal(t, []int{20, 5, database.MaxListLimit}, history.limits)
}

func TestSourceProducts(t *testing.T) {
	source := &stubSource{products: []rackbeat.Product{{
		Number:     "ABC-100",
		Name:       "Bracket",
		SalesPrice: decimal.NewNullDecimal(decimal.RequireFromString("49.99")),
	}}}
	f := newFixture(t, nil, nil, source)

	rec := f.do(http.MethodGet, "/api/v1/source/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["count"])

	rec = f.do(http.MethodGet, "/api/v1/source/products?preview=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decode(t, rec)["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "ABC-100", payload["title"])
	variant := payload["variants"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "49.99", variant["price"])
}

func TestSourceProducts_UpstreamFailure(t *testing.T) {
	source := &stubSource{err: &services.TransportError{Op: "fetch products", Status: http.StatusUnauthorized}}
	f := newFixture(t, nil, nil, source)

	rec := f.do(http.MethodGet, "/api/v1/source/products", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDestinationProducts(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	f.shopify.Seed("ABC-100", "ABC-100", "49.99")
	f.shopify.Seed("ABC-200", "ABC-200", "12.00")

	rec := f.do(http.MethodGet, "/api/v1/destination/products?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["count"])
}

func TestGraphQLPassthrough(t *testing.T) {
	f := newFixture(t, nil, nil, nil)

	rec := f.do(http.MethodPost, "/api/v1/destination/graphql", `{"query":"{ shop { name } }"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"shop":{"name":"test"}}}`, rec.Body.String())
	assert.Equal(t, 1, f.shopify.Count(http.MethodPost, "/graphql.json"))

	rec = f.do(http.MethodPost, "/api/v1/destination/graphql", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, nil, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sync", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
