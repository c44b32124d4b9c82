package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rokstats/rokstats/internal/application/command"
	"github.com/rokstats/rokstats/internal/application/query"
	"github.com/rokstats/rokstats/internal/domain/ranking"
	"github.com/rokstats/rokstats/internal/domain/shared"
	"github.com/rokstats/rokstats/internal/domain/snapshot"
	"github.com/rokstats/rokstats/internal/infrastructure/persistence/memory"
	"github.com/rokstats/rokstats/internal/interface/http/handlers"
	"github.com/rokstats/rokstats/pkg/logger"
	"github.com/rokstats/rokstats/pkg/metrics"
)

const testAPIKey = "s3cret"

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

func day(d int) time.Time {
	return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC)
}

func player(id, name string, at time.Time, t4, t5, deads, power int64) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		EntityID:   id,
		Kind:       snapshot.KindPlayer,
		Group:      "1001",
		CapturedAt: at,
		Name:       name,
		Metrics: snapshot.Metrics{
			snapshot.MetricT4Kills: decimal.NewFromInt(t4),
			snapshot.MetricT5Kills: decimal.NewFromInt(t5),
			snapshot.MetricDeads:   decimal.NewFromInt(deads),
			snapshot.MetricPower:   decimal.NewFromInt(power),
		},
	}
}

func fixtureRepo() *memory.SnapshotRepository {
	return memory.NewSnapshotRepository(
		player("10000001", "Alpha", day(1), 100, 10, 5, 1000),
		player("10000001", "Alpha", day(5), 110, 20, 6, 1500),
		player("10000002", "Bravo", day(1), 0, 0, 0, 5000),
		player("10000002", "Bravo", day(5), 50, 0, 0, 4000),
	)
}

func newTestServer(t *testing.T, repo *memory.SnapshotRepository, mutate ...func(*Config, *Dependencies)) *Server {
	t.Helper()

	m := metrics.NewManager()
	qd := query.Dependencies{
		Snapshots: repo,
		Engine:    ranking.NewEngine(),
		Metrics:   m,
	}

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	cfg.APIKeys = []string{testAPIKey}

	deps := Dependencies{
		RankEntities:      query.NewRankEntitiesHandler(qd),
		GetEntityHistory:  query.NewGetEntityHistoryHandler(qd),
		GetGroupDashboard: query.NewGetGroupDashboardHandler(qd, snapshot.MetricPower),
		ListGroups:        query.NewListGroupsHandler(qd),
		AppendSnapshots:   command.NewAppendSnapshotsHandler(repo, nil, nil),
		Metrics:           m,
		Logger:            logger.Nop(),
	}

	for _, fn := range mutate {
		fn(&cfg, &deps)
	}

	s := NewServer(cfg, deps)
	t.Cleanup(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
	})
	return s
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	Meta      *ResponseMeta   `json:"meta"`
	RequestID string          `json:"request_id"`
}

func do(t *testing.T, s *Server, method, target, body string, header http.Header) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

// ─────────────────────────────────────────────────────────────────────────────
// Rankings
// ─────────────────────────────────────────────────────────────────────────────

func TestRankPlayers(t *testing.T) {
	s := newTestServer(t, fixtureRepo())

	rec, env := do(t, s, http.MethodGet, "/api/v1/kingdoms/1001/players?sort=dkp", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, rec.Header().Get("X-Request-ID"), env.RequestID)

	var res query.RankEntitiesResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.Len(t, res.Items, 2)
	assert.Equal(t, "10000002", res.Items[0].EntityID)
	assert.Equal(t, "500", res.Items[0].Scores["dkp"])
	assert.Equal(t, 1, res.Items[0].Rank)
	assert.Equal(t, "dkp", res.Sort.Key)

	require.NotNil(t, env.Meta)
	assert.Equal(t, 2, env.Meta.TotalCount)
	assert.Equal(t, 1, env.Meta.Page)
}

func TestRankPlayers_EchoesFallbackSortKey(t *testing.T) {
	s := newTestServer(t, fixtureRepo())

	rec, env := do(t, s, http.MethodGet, "/api/v1/kingdoms/1001/players?sort=gold&dir=asc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res query.RankEntitiesResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Sort.Fallback)
	assert.Equal(t, "gold", res.Sort.Requested)
	assert.Equal(t, "power", res.Sort.Key)
	assert.Equal(t, "asc", res.Sort.Direction)
	assert.Equal(t, "10000001", res.Items[0].EntityID)
}

func TestRankPlayers_RequestIDIsPropagated(t *testing.T) {
	s := newTestServer(t, fixtureRepo())

	rec, env := do(t, s, http.MethodGet, "/api/v1/kingdoms/1001/players", "", http.Header{
		"X-Request-Id": {"req-42"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-42", env.RequestID)
}

func TestListGroups(t *testing.T) {
	s := newTestServer(t, fixtureRepo())

	rec, env := do(t, s, http.MethodGet, "/api/v1/groups", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res query.ListGroupsResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, []string{"1001"}, res.Groups)

	rec, env = do(t, s, http.MethodGet, "/api/v1/groups?kind=alliance", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", env.Error.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Error mapping
// ─────────────────────────────────────────────────────────────────────────────

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		storeErr   error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "inverted window",
			target:     "/api/v1/kingdoms/1001/players?start=2024-03-05&end=2024-03-01",
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_window",
		},
		{
			name:       "malformed bound",
			target:     "/api/v1/players/10000001/history?start=last-week",
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "unknown dashboard metric",
			target:     "/api/v1/kingdoms/1001/dashboard?metric=gold",
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "store down",
			target:     "/api/v1/kingdoms",
			storeErr:   errors.New("dial tcp: connection refused"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "store_unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := fixtureRepo()
			repo.Err = tt.storeErr
			s := newTestServer(t, repo)

			rec, env := do(t, s, http.MethodGet, tt.target, "", nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestStoreUnavailable_SetsRetryAfter(t *testing.T) {
	repo := fixtureRepo()
	repo.Err = errors.New("timeout")
	s := newTestServer(t, repo)

	rec, _ := do(t, s, http.MethodGet, "/api/v1/dashboard", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
}

// ─────────────────────────────────────────────────────────────────────────────
// History & dashboard
// ─────────────────────────────────────────────────────────────────────────────

func TestPlayerHistory(t *testing.T) {
	s := newTestServer(t, fixtureRepo())

	rec, env := do(t, s, http.MethodGet, "/api/v1/players/10000001/history", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res query.EntityHistoryResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.False(t, res.NoData)
	assert.Equal(t, "500", res.Deltas["power"])
	assert.Len(t, res.Series, 2)

	rec, env = do(t, s, http.MethodGet, "/api/v1/players/10000001/history?start=2024-04-01", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.NoData)
}

func TestPlayerDashboard(t *testing.T) {
	s := newTestServer(t, fixtureRepo())

	rec, env := do(t, s, http.MethodGet, "/api/v1/kingdoms/1001/dashboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res query.GroupDashboardResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "5500", res.TotalCurrent)
	assert.Equal(t, "6000", res.TotalPrevious)
	assert.Equal(t, "-500", res.TotalChange)
	assert.Equal(t, "-8.33", res.TotalChangePercent)
}

// ─────────────────────────────────────────────────────────────────────────────
// Ingestion
// ─────────────────────────────────────────────────────────────────────────────

const ingestBody = `{"snapshots":[{
	"entity_id": "10000003",
	"kind": "player",
	"group": "1001",
	"captured_at": "2024-03-06T08:00:00Z",
	"name": "Charlie",
	"metrics": {"power": "900000000000000000000", "deads": "7"}
}]}`

func TestAppendSnapshots(t *testing.T) {
	repo := fixtureRepo()
	s := newTestServer(t, repo)

	rec, env := do(t, s, http.MethodPost, "/api/v1/snapshots", ingestBody, http.Header{
		"X-Api-Key": {testAPIKey},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "no-store, no-cache, must-revalidate, max-age=0", rec.Header().Get("Cache-Control"))

	var res command.AppendSnapshotsResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 1, res.Appended)
	assert.NotEmpty(t, res.BatchID)
	assert.Equal(t, 5, repo.Len())

	rec, env = do(t, s, http.MethodGet, "/api/v1/kingdoms/1001/players?sort=power", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ranked query.RankEntitiesResult
	require.NoError(t, json.Unmarshal(env.Data, &ranked))
	assert.Equal(t, "900000000000000000000", ranked.Items[0].Metrics["power"])
}

// replayRepo reports every append as an already stored batch.
type replayRepo struct {
	*memory.SnapshotRepository
}

func (replayRepo) Append(context.Context, string, []*snapshot.Snapshot) error {
	return shared.WrapError("snapshot", "Append", shared.ErrConflict, "batch already stored", errors.New("duplicate key"))
}

func TestAppendSnapshots_ReplayedBatchIsConflict(t *testing.T) {
	repo := fixtureRepo()
	s := newTestServer(t, repo, func(_ *Config, d *Dependencies) {
		d.AppendSnapshots = command.NewAppendSnapshotsHandler(replayRepo{repo}, nil, nil)
	})

	rec, env := do(t, s, http.MethodPost, "/api/v1/snapshots", ingestBody, http.Header{
		"X-Api-Key": {testAPIKey},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "conflict", env.Error.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))
}

func TestAppendSnapshots_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		header     http.Header
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing key",
			body:       ingestBody,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "missing_api_key",
		},
		{
			name:       "wrong key",
			body:       ingestBody,
			header:     http.Header{"X-Api-Key": {"nope"}},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "invalid_api_key",
		},
		{
			name:       "malformed body",
			body:       `{"snapshots": [`,
			header:     http.Header{"Authorization": {"Bearer " + testAPIKey}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "unknown metric",
			body:       strings.Replace(ingestBody, `"deads"`, `"gold"`, 1),
			header:     http.Header{"X-Api-Key": {testAPIKey}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := fixtureRepo()
			s := newTestServer(t, repo)

			rec, env := do(t, s, http.MethodPost, "/api/v1/snapshots", tt.body, tt.header)
			assert.Equal(t, tt.wantStatus, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			assert.Equal(t, 4, repo.Len())
		})
	}
}

func TestAppendSnapshots_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, fixtureRepo(), func(c *Config, _ *Dependencies) {
		c.MaxBodyBytes = 16
	})

	rec, env := do(t, s, http.MethodPost, "/api/v1/snapshots", ingestBody, http.Header{
		"X-Api-Key": {testAPIKey},
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "payload_too_large", env.Error.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Health, metrics & middleware
// ─────────────────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	s := newTestServer(t, fixtureRepo(), func(_ *Config, d *Dependencies) {
		d.HealthChecker = checker
	})

	rec, _ := do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	checker.AddCheck("database", func(context.Context) error { return errors.New("down") })

	rec, _ = do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, fixtureRepo())

	do(t, s, http.MethodGet, "/api/v1/kingdoms", "", nil)

	rec, _ := do(t, s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `rokstats_http_requests_total{method="GET",route="GET /api/v1/kingdoms",status_code="200"} 1`)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, fixtureRepo(), func(c *Config, _ *Dependencies) {
		c.RateLimitPerMinute = 2
	})

	for i := 0; i < 2; i++ {
		rec, _ := do(t, s, http.MethodGet, "/live", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, env := do(t, s, http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limit_exceeded", env.Error.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRecovery(t *testing.T) {
	s := newTestServer(t, fixtureRepo())
	s.router.HandleFunc("GET /panic", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec, env := do(t, s, http.MethodGet, "/panic", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_server_error", env.Error.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, fixtureRepo())

	rec, _ := do(t, s, http.MethodOptions, "/api/v1/kingdoms", "", http.Header{
		"Origin": {"https://example.org"},
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}
