// Package api serves the node's HTTP surface: the sample as JSON and
// HTML, the log and queue, board reset, history and charts.
package api

import (
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/airquality.report/internal/acquisition"
	"github.com/banshee-data/airquality.report/internal/db"
	"github.com/banshee-data/airquality.report/internal/httputil"
	"github.com/banshee-data/airquality.report/internal/monitoring"
	"github.com/banshee-data/airquality.report/internal/queue"
	"github.com/banshee-data/airquality.report/internal/store"
	"github.com/banshee-data/airquality.report/internal/timeutil"
)

// StatusSource reports the acquisition loop's state.
type StatusSource interface {
	Status() acquisition.Status
}

// Resetter restarts the board.
type Resetter interface {
	RequestReset() bool
}

// Options wires a Server to the rest of the node. Registry may be nil;
// Clock defaults to the real clock and Location to UTC.
type Options struct {
	Store     *store.Store
	Scheduler StatusSource
	LogFile   *monitoring.LogFile
	Queue     *queue.Spool
	DB        *db.DB
	Resetter  Resetter
	APIKey    string
	Registry  *prometheus.Registry
	Clock     timeutil.Clock
	Location  *time.Location
}

type Server struct {
	store    *store.Store
	sched    StatusSource
	logFile  *monitoring.LogFile
	queue    *queue.Spool
	db       *db.DB
	resetter Resetter
	apiKey   string
	registry *prometheus.Registry
	clock    timeutil.Clock
	location *time.Location
}

func NewServer(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Server{
		store:    opts.Store,
		sched:    opts.Scheduler,
		logFile:  opts.LogFile,
		queue:    opts.Queue,
		db:       opts.DB,
		resetter: opts.Resetter,
		apiKey:   opts.APIKey,
		registry: opts.Registry,
		clock:    opts.Clock,
		location: opts.Location,
	}
}

// accessRecorder remembers what a handler sent so the access log can
// report it.
type accessRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (a *accessRecorder) WriteHeader(code int) {
	a.status = code
	a.ResponseWriter.WriteHeader(code)
}

func (a *accessRecorder) Write(p []byte) (int, error) {
	n, err := a.ResponseWriter.Write(p)
	a.bytes += n
	return n, err
}

// Flush keeps /reset's early reply and the SSE tail working through the
// middleware.
func (a *accessRecorder) Flush() {
	if f, ok := a.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingMiddleware writes one access line per request. The line lands in
// the node log served by /log, so it is plain text.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &accessRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "-"
		}
		client, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			client = r.RemoteAddr
		}
		log.Printf("http: %s %s -> %d %dB route=%s client=%s %.1fms",
			r.Method, r.URL.RequestURI(), rec.status, rec.bytes, route, client,
			float64(time.Since(start).Microseconds())/1000)
	})
}

// ServeMux returns the node's routes. Debug pages are attached to the
// same mux by their owners.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/html", s.handleHTML)
	mux.HandleFunc("/log", s.handleLog)
	mux.HandleFunc("/queue", s.handleQueue)
	mux.HandleFunc("/reset", s.handleReset)

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/chart", s.handleChart)
	if s.registry != nil {
		mux.Handle("/metrics", monitoring.Handler(s.registry))
	}
	return mux
}

func notFound(w http.ResponseWriter) {
	httputil.WriteText(w, http.StatusNotFound, "Resource not found")
}
