// Package health reports ledger API status: store and Redis reachability,
// request counters kept by middleware.HealthMarker and external probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"stocktransfer-backend/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// ServiceName is reported by /health/json.
const ServiceName = "stocktransfer-ledger-api"

// DBPinger is satisfied by *sql.DB.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// Probe is an external HTTP dependency checked with a GET.
type Probe struct {
	Name string
	URL  string
}

// StripeProbe checks the payment provider.
var StripeProbe = Probe{Name: "stripe", URL: "https://api.stripe.com/healthcheck"}

// Report is the /health/json payload.
type Report struct {
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Dependencies map[string]DepStatus `json:"dependencies"`
}

type RuntimeInfo struct {
	UptimeSeconds int64  `json:"uptimeSeconds"`
	HeapMB        int    `json:"heapMB"`
	Goroutines    int    `json:"goroutines"`
	Platform      string `json:"platform"`
	GoVersion     string `json:"goVersion"`
}

type TrafficInfo struct {
	TotalRequests   int                    `json:"totalRequests"`
	SuccessCount    int                    `json:"successCount"`
	FailedCount     int                    `json:"failedCount"`
	SuccessRate     string                 `json:"successRate"`
	AvgResponseTime string                 `json:"avgResponseTime"`
	LastRequest     map[string]interface{} `json:"lastRequest,omitempty"`
}

type DepStatus struct {
	Status string `json:"status"`
	PingMs *int64 `json:"pingMs"`
}

// Collector gathers a Report. Nil Rdb or DB are reported as disconnected.
type Collector struct {
	Rdb    *redis.Client
	DB     DBPinger
	Probes []Probe
	Client *http.Client
	Now    func() time.Time
}

func (c *Collector) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Collect builds the report. Status is "ok" only when the store and Redis answer.
func (c *Collector) Collect(ctx context.Context) Report {
	report := Report{Dependencies: make(map[string]DepStatus)}

	db := DepStatus{Status: "disconnected"}
	if c.DB != nil {
		start := time.Now()
		if err := c.DB.PingContext(ctx); err == nil {
			db = DepStatus{Status: "connected", PingMs: since(start)}
		} else {
			db.Status = "error"
		}
	}
	report.Dependencies["database"] = db

	cache := DepStatus{Status: "disconnected"}
	report.Traffic = TrafficInfo{SuccessRate: "100", AvgResponseTime: "0"}
	startedAt := c.now()
	if c.Rdb != nil {
		start := time.Now()
		if err := c.Rdb.Ping(ctx).Err(); err == nil {
			cache = DepStatus{Status: "connected", PingMs: since(start)}
			startedAt = c.readTraffic(ctx, &report.Traffic, startedAt)
		} else {
			cache.Status = "error"
		}
	}
	report.Dependencies["redis"] = cache

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := int64(c.now().Sub(startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}
	report.Runtime = RuntimeInfo{
		UptimeSeconds: uptime,
		HeapMB:        int(m.HeapInuse / 1024 / 1024),
		Goroutines:    runtime.NumGoroutine(),
		Platform:      runtime.GOOS + " (" + runtime.GOARCH + ")",
		GoVersion:     runtime.Version(),
	}

	for _, p := range c.Probes {
		report.Dependencies[p.Name] = c.probe(ctx, p)
	}

	report.Status = "issue"
	if db.Status == "connected" && cache.Status == "connected" {
		report.Status = "ok"
	}
	return report
}

// readTraffic fills t from the HealthMarker counters and returns the recorded start time.
func (c *Collector) readTraffic(ctx context.Context, t *TrafficInfo, fallback time.Time) time.Time {
	vals, _ := c.Rdb.MGet(ctx,
		middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyResTime,
		middleware.KeyResCount, middleware.KeyStartTime, middleware.KeyLastReq,
	).Result()
	str := func(i int) string {
		if i < len(vals) {
			if s, ok := vals[i].(string); ok {
				return s
			}
		}
		return ""
	}

	t.TotalRequests, _ = strconv.Atoi(str(0))
	t.FailedCount, _ = strconv.Atoi(str(1))
	t.SuccessCount = t.TotalRequests - t.FailedCount
	if t.TotalRequests > 0 {
		t.SuccessRate = strconv.FormatFloat(float64(t.SuccessCount)/float64(t.TotalRequests)*100, 'f', 1, 64)
	}
	timeSum, _ := strconv.ParseFloat(str(2), 64)
	if count, _ := strconv.Atoi(str(3)); count > 0 {
		t.AvgResponseTime = strconv.FormatFloat(timeSum/float64(count), 'f', 2, 64)
	}
	if last := str(5); last != "" {
		_ = json.Unmarshal([]byte(last), &t.LastRequest)
	}

	if ms, err := strconv.ParseInt(str(4), 10, 64); err == nil {
		return time.UnixMilli(ms)
	}
	c.Rdb.Set(ctx, middleware.KeyStartTime, fallback.UnixMilli(), 0)
	return fallback
}

func (c *Collector) probe(ctx context.Context, p Probe) DepStatus {
	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return DepStatus{Status: "unreachable"}
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return DepStatus{Status: "unreachable"}
	}
	resp.Body.Close()
	return DepStatus{Status: "reachable", PingMs: since(start)}
}

// ResetStats clears the counters and restarts the uptime clock.
func (c *Collector) ResetStats(ctx context.Context) error {
	keys := []string{middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyResTime, middleware.KeyResCount, middleware.KeyStartTime, middleware.KeyLastReq, middleware.KeyErrorLog}
	if err := c.Rdb.Del(ctx, keys...).Err(); err != nil {
		return err
	}
	return c.Rdb.Set(ctx, middleware.KeyStartTime, strconv.FormatInt(c.now().UnixMilli(), 10), 0).Err()
}

// RecentErrors returns up to the last 50 server errors recorded by HealthMarker.
func (c *Collector) RecentErrors(ctx context.Context) ([]map[string]interface{}, error) {
	entries, err := c.Rdb.LRange(ctx, middleware.KeyErrorLog, 0, 49).Result()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(entries))
	for _, s := range entries {
		var m map[string]interface{}
		if json.Unmarshal([]byte(s), &m) == nil {
			out = append(out, m)
		}
	}
	return out, nil
}

func since(start time.Time) *int64 {
	ms := time.Since(start).Milliseconds()
	return &ms
}
