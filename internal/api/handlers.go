package api

import (
	"html/template"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/banshee-data/airquality.report/internal/httputil"
)

var samplePage = template.Must(template.New("sample").Parse(`<html>
<head><title>Air Quality Sensor</title></head>
<body>
<h1>PM<sub>1.0</sub>: {{.PM1_0}}</h1>
<h1>PM<sub>2.5</sub>: {{.PM2_5}}</h1>
<h1>PM<sub>10</sub>: {{.PM10}}</h1>
<ul>
<li>Particles > 0.3&#181;m / 0.1L air &mdash; {{.Particles0_3um}}</li>
<li>Particles > 0.5&#181;m / 0.1L air &mdash; {{.Particles0_5um}}</li>
<li>Particles > 1.0&#181;m / 0.1L air &mdash; {{.Particles1_0um}}</li>
<li>Particles > 2.5&#181;m / 0.1L air &mdash; {{.Particles2_5um}}</li>
<li>Particles > 5.0&#181;m / 0.1L air &mdash; {{.Particles5_0um}}</li>
<li>Particles > 10&#181;m / 0.1L air &mdash; {{.Particles10um}}</li>
</ul>
</body>
</html>
`))

// handleRoot serves the current sample as JSON. It also owns every path
// no other route matched.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" || r.Method != http.MethodGet {
		notFound(w)
		return
	}
	httputil.WriteJSONOK(w, s.store.Current())
}

func (s *Server) handleHTML(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		notFound(w)
		return
	}
	sample := s.store.Current()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := samplePage.Execute(w, sample); err != nil {
		log.Printf("failed to render sample page: %v", err)
	}
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rc, _, err := s.logFile.Open()
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		defer rc.Close()
		// no Content-Length: the body is streamed chunked
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := io.Copy(w, rc); err != nil {
			log.Printf("failed to stream log file: %v", err)
		}
	case http.MethodDelete:
		if !Authorized(r, s.apiKey) {
			forbidden(w)
			return
		}
		if err := s.logFile.Clear(); err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteText(w, http.StatusOK, "Log file cleared!")
	default:
		notFound(w)
	}
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		names, err := s.queue.List()
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteText(w, http.StatusOK, strings.Join(names, "\n"))
	case http.MethodDelete:
		if !Authorized(r, s.apiKey) {
			forbidden(w)
			return
		}
		n, err := s.queue.Clear()
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		log.Printf("Queue cleared, %d files removed", n)
		httputil.WriteText(w, http.StatusOK, "Queue cleared")
	default:
		notFound(w)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		notFound(w)
		return
	}
	if !Authorized(r, s.apiKey) {
		forbidden(w)
		return
	}
	httputil.WriteText(w, http.StatusOK, "Resetting board...")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	s.resetter.RequestReset()
}
