package queues

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels values of devctx_queue_requests_total.
const (
	opGet        = "get"
	opPush       = "push"
	opSetDefault = "set_default"
	opCurrent    = "current"
	opAdHoc      = "adhoc"

	resultOK          = "ok"
	resultNotFound    = "not_found"
	resultUnsupported = "unsupported"
	resultNoActive    = "no_active"
	resultFailed      = "failed"
)

// metrics holds the prometheus collectors of a Manager. They are always created, and only
// registered if a prometheus.Registerer is given with WithRegisterer.
type metrics struct {
	catalogGroups *prometheus.GaugeVec
	cacheBuilds   *prometheus.CounterVec
	requests      *prometheus.CounterVec
	handlesLive   prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		catalogGroups: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "devctx_catalog_groups",
			Help: "Number of device groups found per (backend, device type) key",
		}, []string{"key"}),
		cacheBuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "devctx_cache_builds_total",
			Help: "Queue cache builds per (backend, device type) key and result",
		}, []string{"key", "result"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "devctx_queue_requests_total",
			Help: "Queue requests per operation and result",
		}, []string{"op", "result"}),
		handlesLive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "devctx_handles_live",
			Help: "Number of queue handles returned to callers and not yet released",
		}),
	}
}

// request counts one request for op, classifying err.
func (m *metrics) request(op string, err error) {
	m.requests.WithLabelValues(op, resultOf(err)).Inc()
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, ErrNotFound):
		return resultNotFound
	case errors.Is(err, ErrUnsupportedKey):
		return resultUnsupported
	case errors.Is(err, ErrNoActiveQueue):
		return resultNoActive
	default:
		return resultFailed
	}
}
