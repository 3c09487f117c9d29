package metrics

import (
	"log"
	"net/http"
	_ "net/http/pprof"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"noy/seadb/pkg/seadb/logger"
)

type MetricsRecorder interface {
	IncRouteCacheHit(database string)
	IncRouteCacheMiss(database string)
	IncRouteEvict()
	IncFetchError(kind string)
	ObserveFetchDuration(duration float64)
}

type MetricsRecorderImpl struct {
	routeCacheHit   *prometheus.CounterVec
	routeCacheMiss  *prometheus.CounterVec
	routeEvictTotal prometheus.Counter
	fetchErrorTotal *prometheus.CounterVec
	fetchDuration   *prometheus.SummaryVec
}

func newMetricsRecorder() MetricsRecorder {
	return &MetricsRecorderImpl{
		routeCacheHit: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "route_cache_hit_total",
			Help: "The total number of route cache hits",
		}, []string{"database"}),

		routeCacheMiss: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "route_cache_miss_total",
			Help: "The total number of route cache misses",
		}, []string{"database"}),

		routeEvictTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "route_evict_total",
			Help: "The total number of evicted routes",
		}),

		fetchErrorTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "route_fetch_error_total",
			Help: "The total number of failed route fetches",
		}, []string{"kind"}),

		fetchDuration: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name:       "route_fetch_duration",
			Help:       "The duration of batched route fetches",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{}),
	}
}

func (m *MetricsRecorderImpl) IncRouteCacheHit(database string) {
	m.routeCacheHit.WithLabelValues(database).Inc()
}

func (m *MetricsRecorderImpl) IncRouteCacheMiss(database string) {
	m.routeCacheMiss.WithLabelValues(database).Inc()
}

func (m *MetricsRecorderImpl) IncRouteEvict() {
	m.routeEvictTotal.Inc()
}

func (m *MetricsRecorderImpl) IncFetchError(kind string) {
	m.fetchErrorTotal.WithLabelValues(kind).Inc()
}

func (m *MetricsRecorderImpl) ObserveFetchDuration(duration float64) {
	m.fetchDuration.WithLabelValues().Observe(duration)
}

// MetricsRecorderMock 测试和未启用 metrics 时使用
type MetricsRecorderMock struct{}

func (m *MetricsRecorderMock) IncRouteCacheHit(database string) {
}

func (m *MetricsRecorderMock) IncRouteCacheMiss(database string) {
}

func (m *MetricsRecorderMock) IncRouteEvict() {
}

func (m *MetricsRecorderMock) IncFetchError(kind string) {
}

func (m *MetricsRecorderMock) ObserveFetchDuration(duration float64) {
}

var recorder MetricsRecorder = &MetricsRecorderMock{}

func Init(port int, mock bool) {
	if mock {
		recorder = &MetricsRecorderMock{}
		return
	}
	recorder = newMetricsRecorder()
	http.Handle("/metrics", promhttp.Handler())
	logger.Infof("metrics server started at :%d", port)
	log.Fatal(http.ListenAndServe(":"+strconv.Itoa(port), nil))
}

func IncRouteCacheHit(database string) {
	recorder.IncRouteCacheHit(database)
}

func IncRouteCacheMiss(database string) {
	recorder.IncRouteCacheMiss(database)
}

func IncRouteEvict() {
	recorder.IncRouteEvict()
}

func IncFetchError(kind string) {
	recorder.IncFetchError(kind)
}

func ObserveFetchDuration(duration float64) {
	recorder.ObserveFetchDuration(duration)
}
