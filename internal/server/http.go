package server

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sort"

	"github.com/morezero/typed-ipc/pkg/manifest"
)

// homePageTemplate is the HTML for the host home page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>IPC Host</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    .stat { font-weight: bold; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    section { margin-bottom: 2rem; }
  </style>
</head>
<body>
  <h1>IPC Host</h1>
  <p class="meta">Schema {{.Status.Version}}, separator <code>{{.Separator}}</code>.</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Status.Status}}">{{.Status.Status}}</span></p>
    <p>Ready renderers: <span class="stat">{{len .Status.Renderers}}</span></p>
    <p>Renderer log lines: <span class="stat">{{.Status.Logged}}</span></p>
    <p>Uptime: {{.Status.Uptime}}</p>
  </section>

  <section>
    <h2>Channels</h2>
    <table>
      <thead>
        <tr><th>Wire name</th><th>Path</th><th>Direction</th><th>Once</th></tr>
      </thead>
      <tbody>
        {{range .Channels}}
        <tr><td>{{.Wire}}</td><td>{{.Path}}</td><td>{{.Direction}}</td><td>{{.Once}}</td></tr>
        {{end}}
      </tbody>
    </table>
  </section>
</body>
</html>
`

type channelRow struct {
	Wire string
	manifest.Entry
}

type homeData struct {
	Status    *Status
	Separator string
	Channels  []channelRow
}

func channelRows(m *manifest.Manifest) []channelRow {
	rows := make([]channelRow, 0, len(m.Channels))
	for wire, e := range m.Channels {
		rows = append(rows, channelRow{Wire: wire, Entry: e})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Wire < rows[j].Wire })
	return rows
}

func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		data := homeData{
			Status:    s.Status(),
			Separator: s.manifest.Separator,
			Channels:  channelRows(s.manifest),
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.Status()
	w.Header().Set("Content-Type", "application/json")
	if st.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	writeJSON(w, st)
}

func (s *Server) handleChannels(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, s.res.Channels)
}

func (s *Server) handleManifest(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, s.manifest)
}

func writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - json encode: %v", logPrefix, err))
	}
}
