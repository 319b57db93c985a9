package api

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/airquality.report/internal/acquisition"
	"github.com/banshee-data/airquality.report/internal/httputil"
	"github.com/banshee-data/airquality.report/internal/pms"
	"github.com/banshee-data/airquality.report/internal/store"
	"github.com/banshee-data/airquality.report/internal/version"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
	defaultWindowHours  = 24
	maxWindowHours      = 24 * 30
)

// StatusResponse is the body of GET /api/status. AgeSeconds and
// PublishedAt are null until the first sample is published.
type StatusResponse struct {
	Acquisition acquisition.Status `json:"acquisition"`
	Seq         uint64             `json:"seq"`
	PublishedAt *time.Time         `json:"published_at"`
	AgeSeconds  *float64           `json:"age_seconds"`
	Sample      pms.Sample         `json:"sample"`
	QueueLength int                `json:"queue_length"`
	Version     string             `json:"version"`
	GitSHA      string             `json:"git_sha"`
	BuildTime   string             `json:"build_time"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	resp := StatusResponse{
		Acquisition: s.sched.Status(),
		Version:     version.Version,
		GitSHA:      version.GitSHA,
		BuildTime:   version.BuildTime,
	}
	if snap, ok := s.store.Snapshot(); ok {
		resp.Seq = snap.Seq
		resp.Sample = snap.Sample
		publishedAt := snap.PublishedAt
		resp.PublishedAt = &publishedAt
		if age, ok := s.store.Age(); ok {
			secs := age.Seconds()
			resp.AgeSeconds = &secs
		}
	}
	if names, err := s.queue.List(); err == nil {
		resp.QueueLength = len(names)
	}
	httputil.WriteJSONOK(w, resp)
}

// queryInt parses name from the query, returning def when absent and an
// error when malformed or outside [1, max].
func queryInt(r *http.Request, name string, def, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 || v > max {
		return 0, fmt.Errorf("%s must be an integer between 1 and %d", name, max)
	}
	return v, nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit, err := queryInt(r, "limit", defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	samples, err := s.db.RecentSamples(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if samples == nil {
		samples = []store.Snapshot{}
	}
	httputil.WriteJSONOK(w, samples)
}

// SeriesStats summarises one concentration over a window.
type SeriesStats struct {
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	Max  float64 `json:"max"`
}

type StatsResponse struct {
	Hours int         `json:"hours"`
	Count int         `json:"count"`
	PM1_0 SeriesStats `json:"pm_1_0"`
	PM2_5 SeriesStats `json:"pm_2_5"`
	PM10  SeriesStats `json:"pm_10"`
}

func summarise(values []float64) SeriesStats {
	if len(values) == 0 {
		return SeriesStats{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return SeriesStats{
		Mean: stat.Mean(sorted, nil),
		P50:  stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:  stat.Quantile(0.95, stat.Empirical, sorted, nil),
		Max:  floats.Max(sorted),
	}
}

// window loads the samples of the last hours hours.
func (s *Server) window(r *http.Request) (int, []store.Snapshot, error) {
	hours, err := queryInt(r, "hours", defaultWindowHours, maxWindowHours)
	if err != nil {
		return 0, nil, err
	}
	since := s.clock.Now().Add(-time.Duration(hours) * time.Hour)
	samples, err := s.db.SamplesSince(since)
	return hours, samples, err
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	hours, samples, err := s.window(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	pm1 := make([]float64, len(samples))
	pm25 := make([]float64, len(samples))
	pm10 := make([]float64, len(samples))
	for i, snap := range samples {
		pm1[i] = float64(snap.Sample.PM1_0)
		pm25[i] = float64(snap.Sample.PM2_5)
		pm10[i] = float64(snap.Sample.PM10)
	}
	httputil.WriteJSONOK(w, StatsResponse{
		Hours: hours,
		Count: len(samples),
		PM1_0: summarise(pm1),
		PM2_5: summarise(pm25),
		PM10:  summarise(pm10),
	})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	hours, samples, err := s.window(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	xs := make([]string, len(samples))
	pm1 := make([]opts.LineData, len(samples))
	pm25 := make([]opts.LineData, len(samples))
	pm10 := make([]opts.LineData, len(samples))
	for i, snap := range samples {
		xs[i] = snap.PublishedAt.In(s.location).Format("Jan 2 15:04")
		pm1[i] = opts.LineData{Value: snap.Sample.PM1_0}
		pm25[i] = opts.LineData{Value: snap.Sample.PM2_5}
		pm10[i] = opts.LineData{Value: snap.Sample.PM10}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Air Quality History", Width: "1000px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Particulate matter", Subtitle: fmt.Sprintf("last %dh, %d samples, µg/m³", hours, len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "µg/m³"}),
	)
	line.SetXAxis(xs).
		AddSeries("PM1.0", pm1).
		AddSeries("PM2.5", pm25).
		AddSeries("PM10", pm10).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
