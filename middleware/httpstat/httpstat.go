// Package httpstat counts the requests served by the sysmetrics HTTP endpoints
// and feeds them into the dashboard collector.
package httpstat

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/OutOfBedlam/metric"
)

var (
	counterType   = metric.CounterType(metric.UnitShort)
	bytesType     = metric.CounterType(metric.UnitBytes)
	histogramType = metric.HistogramType(metric.UnitDuration)
)

// Handler wraps the serve mux. Every request produces one metric.Gather
// named after the endpoint it hit ("http:metrics_requests", ...).
type Handler struct {
	ch      chan<- *metric.Gather
	handler http.Handler
	routes  map[string]string
	log     *slog.Logger
}

// NewHandler maps request paths to endpoint names. Requests to other paths
// are counted as "other".
func NewHandler(ch chan<- *metric.Gather, handler http.Handler, routes map[string]string) *Handler {
	return &Handler{ch: ch, handler: handler, routes: routes, log: slog.Default()}
}

func (h *Handler) Endpoint(path string) string {
	if name, ok := h.routes[path]; ok {
		return name
	}
	return "other"
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tick := time.Now()
	rsp := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
	defer func() {
		if err := recover(); err != nil {
			h.log.Error("http handler panic", "path", r.URL.Path, "error", err)
			if !rsp.headerWritten {
				http.Error(rsp, "Internal Server Error", http.StatusInternalServerError)
			}
		}
		h.ch <- h.gather(h.Endpoint(r.URL.Path), time.Since(tick), rsp)
	}()
	h.handler.ServeHTTP(rsp, r)
}

func (h *Handler) gather(endpoint string, elapsed time.Duration, rsp *responseWriter) *metric.Gather {
	g := &metric.Gather{}
	prefix := "http:" + strings.ReplaceAll(endpoint, ":", "_")
	g.Add(prefix+"_requests", 1, counterType)
	g.Add(prefix+"_latency", float64(elapsed.Nanoseconds()), histogramType)
	g.Add(prefix+"_bytes_sent", float64(rsp.written), bytesType)
	g.Add(fmt.Sprintf("%s_status_%dxx", prefix, rsp.statusCode/100), 1, counterType)
	return g
}

type responseWriter struct {
	http.ResponseWriter
	headerWritten bool
	written       int
	statusCode    int
}

var _ http.Flusher = (*responseWriter)(nil)

func (w *responseWriter) Write(b []byte) (int, error) {
	w.headerWritten = true
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

func (w *responseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *responseWriter) WriteHeader(statusCode int) {
	if w.headerWritten {
		return
	}
	w.headerWritten = true
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
