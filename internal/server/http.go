package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	comms "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/morezero/native-bridge/pkg/bridge"
	"github.com/morezero/native-bridge/pkg/db"
	"github.com/morezero/native-bridge/pkg/metrics"
)

// bridgeStatus is the read-only view of a bridge the HTTP handlers need.
type bridgeStatus interface {
	Receivers() []string
	QueueDepth() int
	ActiveReceivers() int
	Peer() *bridge.Peer
	Running() bool
}

type callLister interface {
	RecentCalls(ctx context.Context, tag string, limit int) ([]db.CallRecord, error)
}

// httpDeps holds everything the HTTP routes read. Nil calls and dbPing mean no journal.
type httpDeps struct {
	bridge        bridgeStatus
	calls         callLister
	metrics       *metrics.Metrics
	natsConnected func() bool
	dbPing        func(ctx context.Context) error
	timeout       time.Duration
}

func (s *Server) routes() http.Handler {
	d := httpDeps{
		bridge:        s.bridge,
		metrics:       s.metrics,
		natsConnected: func() bool { return s.nc.Status() == comms.CONNECTED },
		timeout:       s.cfg.HealthCheckTimeout,
	}
	if s.pool != nil {
		d.calls = db.NewCallStore(s.pool)
		d.dbPing = s.pool.Ping
	}
	return newMux(d)
}

func newMux(d httpDeps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", d.handleHome())
	mux.HandleFunc("/health", d.handleHealth())
	mux.HandleFunc("/ready", d.handleReady())
	mux.HandleFunc("/calls", d.handleCalls())
	if d.metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(d.metrics.Registry, promhttp.HandlerOpts{}))
	}
	return mux
}

// HealthOutput is the /health response body.
type HealthOutput struct {
	Status    string          `json:"status"`
	Checks    map[string]bool `json:"checks"`
	Timestamp string          `json:"timestamp"`
}

func (d httpDeps) health(ctx context.Context) *HealthOutput {
	checks := map[string]bool{
		"bridge": d.bridge.Running(),
		"nats":   d.natsConnected == nil || d.natsConnected(),
	}
	if d.dbPing != nil {
		checks["database"] = d.dbPing(ctx) == nil
	}
	status := "healthy"
	for _, ok := range checks {
		if !ok {
			status = "unhealthy"
			break
		}
	}
	return &HealthOutput{Status: status, Checks: checks, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

func (d httpDeps) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d.timeout)
		defer cancel()
		h := d.health(ctx)
		w.Header().Set("Content-Type", "application/json")
		if h.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(h)
	}
}

// handleReady reports ready once the owning loop is running.
func (d httpDeps) handleReady() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !d.bridge.Running() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	}
}

// handleCalls returns recent journal rows, optionally filtered by ?tag= and bounded by ?limit=.
func (d httpDeps) handleCalls() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if d.calls == nil {
			http.Error(w, "call journal is not enabled", http.StatusNotFound)
			return
		}
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "limit must be an integer", http.StatusBadRequest)
				return
			}
			limit = n
		}

		ctx, cancel := context.WithTimeout(r.Context(), d.timeout)
		defer cancel()
		rows, err := d.calls.RecentCalls(ctx, r.URL.Query().Get("tag"), limit)
		if err != nil {
			slog.Error(fmt.Sprintf("%s - recent calls: %v", logPrefix, err))
			http.Error(w, "failed to load calls", http.StatusInternalServerError)
			return
		}
		if rows == nil {
			rows = []db.CallRecord{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rows)
	}
}

// homePageTemplate is the HTML for the bridge home page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Native Bridge</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    a { color: #0066cc; }
    h1, h2, h3 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    .stat { font-weight: bold; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    section { margin-bottom: 2rem; }
    .error { color: #cc0000; }
  </style>
</head>
<body>
  <h1>Native Bridge</h1>
  <p class="meta">Bridge health, counterpart and registered receivers.</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    {{range $name, $ok := .Health.Checks}}
    <p>{{$name}}: {{if $ok}}<span class="stat">OK</span>{{else}}<span class="error">Failed</span>{{end}}</p>
    {{end}}
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>

  <section>
    <h2>Script counterpart</h2>
    {{if .Peer}}
    <p>Version: <span class="stat">{{.Peer.Version}}</span>
      {{if .Peer.Compatible}}(compatible){{else}}<span class="error">(incompatible)</span>{{end}}</p>
    {{else}}
    <p>No handshake received.</p>
    {{end}}
  </section>

  <section>
    <h2>Statistics</h2>
    <p>Queued outbound tasks: <span class="stat">{{.QueueDepth}}</span></p>
    <p>Running receivers: <span class="stat">{{.ActiveReceivers}}</span></p>
  </section>

  <section>
    <h2>Receivers</h2>
    {{if not .Receivers}}
    <p>No receivers registered.</p>
    {{else}}
    <table>
      <thead>
        <tr><th>Tag</th>{{if .JournalEnabled}}<th>Calls</th>{{end}}</tr>
      </thead>
      <tbody>
        {{range .Receivers}}
        <tr>
          <td>{{.}}</td>
          {{if $.JournalEnabled}}<td><a href="/calls?tag={{.}}">recent</a></td>{{end}}
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>
</body>
</html>
`

// homeData is the data passed to the home page template.
type homeData struct {
	Health          *HealthOutput
	Peer            *bridge.Peer
	Receivers       []string
	QueueDepth      int
	ActiveReceivers int
	JournalEnabled  bool
}

// handleHome returns an HTTP handler for the bridge home page.
func (d httpDeps) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), d.timeout)
		defer cancel()

		data := homeData{
			Health:          d.health(ctx),
			Peer:            d.bridge.Peer(),
			Receivers:       d.bridge.Receivers(),
			QueueDepth:      d.bridge.QueueDepth(),
			ActiveReceivers: d.bridge.ActiveReceivers(),
			JournalEnabled:  d.calls != nil,
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
