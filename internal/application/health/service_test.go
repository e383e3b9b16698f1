package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stocktransfer-backend/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct{ err error }

func (f fakeDB) PingContext(context.Context) error { return f.err }

func newRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return rdb
}

func TestCollect_NothingConfigured(t *testing.T) {
	report := (&Collector{}).Collect(context.Background())
	assert.Equal(t, "issue", report.Status)
	assert.Equal(t, "disconnected", report.Dependencies["database"].Status)
	assert.Equal(t, "disconnected", report.Dependencies["redis"].Status)
	assert.Equal(t, 0, report.Traffic.TotalRequests)
	assert.Equal(t, "100", report.Traffic.SuccessRate)
}

func TestCollect_ReadsCounters(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	now := time.UnixMilli(1_000_000 + 90_000)
	c := &Collector{Rdb: rdb, DB: fakeDB{}, Now: func() time.Time { return now }}

	require.NoError(t, rdb.Set(ctx, middleware.KeyReqTotal, "10", 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyReqErrors, "2", 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyResTime, "150.5", 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyResCount, "10", 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyStartTime, "1000000", 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyLastReq, `{"method":"POST","path":"/api/v1/transfers"}`, 0).Err())

	report := c.Collect(ctx)
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, 10, report.Traffic.TotalRequests)
	assert.Equal(t, 2, report.Traffic.FailedCount)
	assert.Equal(t, 8, report.Traffic.SuccessCount)
	assert.Equal(t, "80.0", report.Traffic.SuccessRate)
	assert.Equal(t, "15.05", report.Traffic.AvgResponseTime)
	assert.Equal(t, int64(90), report.Runtime.UptimeSeconds)
	assert.Equal(t, "POST", report.Traffic.LastRequest["method"])
}

func TestCollect_DatabaseDown(t *testing.T) {
	c := &Collector{Rdb: newRedis(t), DB: fakeDB{err: errors.New("refused")}}
	report := c.Collect(context.Background())
	assert.Equal(t, "issue", report.Status)
	assert.Equal(t, "error", report.Dependencies["database"].Status)
}

func TestCollect_Probes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := &Collector{Probes: []Probe{{Name: "stripe", URL: srv.URL}, {Name: "portal", URL: "http://127.0.0.1:1"}}}
	report := c.Collect(context.Background())
	assert.Equal(t, "reachable", report.Dependencies["stripe"].Status)
	assert.NotNil(t, report.Dependencies["stripe"].PingMs)
	assert.Equal(t, "unreachable", report.Dependencies["portal"].Status)
}

func TestResetStatsAndRecentErrors(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	c := &Collector{Rdb: rdb}

	require.NoError(t, rdb.Set(ctx, middleware.KeyReqTotal, "5", 0).Err())
	require.NoError(t, rdb.LPush(ctx, middleware.KeyErrorLog, `{"message":"boom"}`, "not json").Err())

	errs, err := c.RecentErrors(ctx)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "boom", errs[0]["message"])

	require.NoError(t, c.ResetStats(ctx))
	_, err = rdb.Get(ctx, middleware.KeyReqTotal).Result()
	assert.ErrorIs(t, err, redis.Nil)
	_, err = rdb.Get(ctx, middleware.KeyStartTime).Result()
	assert.NoError(t, err)
	errs, err = c.RecentErrors(ctx)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestRenderDashboard(t *testing.T) {
	ms := int64(3)
	html, err := RenderDashboard(Report{
		Status:       "issue",
		Dependencies: map[string]DepStatus{"database": {Status: "connected", PingMs: &ms}, "redis": {Status: "error"}},
		Traffic:      TrafficInfo{LastRequest: map[string]interface{}{"method": "GET", "path": "/x<y>", "ip": "1.2.3.4"}},
	})
	require.NoError(t, err)
	assert.Contains(t, html, "System Issues Detected")
	assert.Contains(t, html, "/health/json")
	assert.Contains(t, html, "/x&lt;y&gt;")
	assert.Contains(t, html, "3 ms")
}
