package health

import (
	"bytes"
	"html/template"
	"sort"
)

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Stock Transfer Ledger · API Status</title>
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <meta http-equiv="refresh" content="30">
  <style>
    body { font-family: system-ui, sans-serif; background: #f8f9fa; color: #1f2937; margin: 0; padding: 40px; }
    h1 { margin: 0 0 8px; font-size: 40px; letter-spacing: -1px; }
    .issue h1 { color: #b91c1c; }
    .grid { display: grid; grid-template-columns: repeat(3, 1fr); gap: 24px; margin-top: 32px; }
    .card { background: #fff; border-radius: 16px; padding: 28px; box-shadow: 0 10px 40px -20px rgba(0,0,0,.2); }
    .label { text-transform: uppercase; font-size: 11px; font-weight: 800; letter-spacing: 2px; color: #94a3b8; margin-bottom: 16px; }
    .row { display: flex; justify-content: space-between; padding: 6px 0; border-bottom: 1px solid #f1f5f9; font-size: 14px; }
    .ok { color: #047857; } .err { color: #dc2626; }
    footer { margin-top: 24px; font-family: monospace; font-size: 13px; color: #64748b; }
    @media (max-width: 900px) { .grid { grid-template-columns: 1fr; } }
  </style>
</head>
<body class="{{.Report.Status}}">
  {{if eq .Report.Status "ok"}}<h1>All Systems Operational</h1>{{else}}<h1>System Issues Detected</h1>{{end}}
  <div>Ledger API status. Raw data at <a href="/health/json">/health/json</a>, recent failures at <a href="/health/errors">/health/errors</a>.</div>
  <div class="grid">
    <div class="card">
      <div class="label">Traffic</div>
      <div class="row"><span>Total</span><span>{{.Report.Traffic.TotalRequests}}</span></div>
      <div class="row"><span>Successful</span><span class="ok">{{.Report.Traffic.SuccessCount}}</span></div>
      <div class="row"><span>Failed</span><span class="err">{{.Report.Traffic.FailedCount}}</span></div>
      <div class="row"><span>Success rate</span><span>{{.Report.Traffic.SuccessRate}}%</span></div>
      <div class="row"><span>Avg latency</span><span>{{.Report.Traffic.AvgResponseTime}} ms</span></div>
    </div>
    <div class="card">
      <div class="label">Runtime</div>
      <div class="row"><span>Uptime</span><span>{{.Report.Runtime.UptimeSeconds}} s</span></div>
      <div class="row"><span>Heap</span><span>{{.Report.Runtime.HeapMB}} MB</span></div>
      <div class="row"><span>Goroutines</span><span>{{.Report.Runtime.Goroutines}}</span></div>
      <div class="row"><span>Platform</span><span>{{.Report.Runtime.Platform}}</span></div>
      <div class="row"><span>Go</span><span>{{.Report.Runtime.GoVersion}}</span></div>
    </div>
    <div class="card">
      <div class="label">Dependencies</div>
      {{range .Deps}}<div class="row"><span>{{.Name}}</span><span class="{{if .Up}}ok{{else}}err{{end}}">{{.Status}}{{if .PingMs}} · {{.PingMs}} ms{{end}}</span></div>
      {{end}}
    </div>
  </div>
  {{with .Report.Traffic.LastRequest}}<footer>last request: {{index . "method"}} {{index . "path"}} from {{index . "ip"}}</footer>{{end}}
</body>
</html>`))

type dashboardDep struct {
	Name   string
	Status string
	PingMs int64
	Up     bool
}

// RenderDashboard returns the HTML status page for report.
func RenderDashboard(report Report) (string, error) {
	deps := make([]dashboardDep, 0, len(report.Dependencies))
	for name, d := range report.Dependencies {
		dep := dashboardDep{Name: name, Status: d.Status, Up: d.Status == "connected" || d.Status == "reachable"}
		if d.PingMs != nil {
			dep.PingMs = *d.PingMs
		}
		deps = append(deps, dep)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })

	var buf bytes.Buffer
	err := dashboardTmpl.Execute(&buf, struct {
		Report Report
		Deps   []dashboardDep
	}{report, deps})
	return buf.String(), err
}
