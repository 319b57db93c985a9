package acquisition

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/airquality.report/internal/store"
)

// Subscriber streams published snapshots.
type Subscriber interface {
	Subscribe() (string, <-chan store.Snapshot)
	Unsubscribe(id string)
}

var statusPage = template.Must(template.New("acquisition").Parse(`<!DOCTYPE html>
<html><head><title>Acquisition</title></head>
<body>
<h1>Acquisition</h1>
<table>
<tr><td>State</td><td>{{.State}}{{if .WarmUpRead}} ({{.WarmUpRead}}){{end}}</td></tr>
<tr><td>Cycles</td><td>{{.Cycles}}</td></tr>
<tr><td>Last outcome</td><td>{{.LastOutcome}}</td></tr>
<tr><td>Last publish</td><td>{{if .LastPublishAt.IsZero}}never{{else}}{{.LastPublishAt.Format "2006-01-02 15:04:05Z07:00"}}{{end}}</td></tr>
<tr><td>Published</td><td>{{.Published}}</td></tr>
<tr><td>Bus faults</td><td>{{.BusFaults}}</td></tr>
<tr><td>Discarded retries</td><td>{{.DiscardedRetries}}</td></tr>
</table>
<h2>Live samples</h2>
<pre id="tail"></pre>
<script>
const out = document.getElementById("tail");
new EventSource("/debug/tail").onmessage = (e) => { out.textContent = e.data + "\n" + out.textContent; };
</script>
</body></html>
`))

// AttachAdminRoutes mounts the acquisition debug pages on the tsweb
// debugger at /debug/.
func (s *Scheduler) AttachAdminRoutes(mux *http.ServeMux, sub Subscriber) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("acquisition", "Sensor duty cycle status and live samples", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := statusPage.Execute(w, s.Status()); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
		}
	})

	debug.HandleSilentFunc("acquisition.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.Status())
	})

	debug.KVFunc("Acquisition state", func() any { return s.Status().State.String() })

	// Server-Sent Events stream of every published sample.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := sub.Subscribe()
		defer sub.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case snap, ok := <-c:
				if !ok {
					return
				}
				payload, err := json.Marshal(snap)
				if err != nil {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
