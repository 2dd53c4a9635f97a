// Package metrics defines the Prometheus instruments of the server and
// adapters feeding them from the tenant resolver, the limit service and the
// HTTP router.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/clinickit/pkg/limits"
	"github.com/dmitrymomot/clinickit/pkg/tenant"
)

const namespace = "clinickit"

// Metrics holds every instrument. The zero value is not usable; call New.
type Metrics struct {
	resolutions   *prometheus.CounterVec
	resolutionDur *prometheus.HistogramVec
	limitChecks   *prometheus.CounterVec
	requests      *prometheus.CounterVec
	requestDur    *prometheus.HistogramVec
	dispatched    prometheus.Counter
	expired       prometheus.Counter
}

// New creates unregistered collectors; call Register before use.
func New() *Metrics {
	return &Metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tenant",
			Name:      "resolutions_total",
			Help:      "Tenant resolutions by outcome",
		}, []string{"outcome"}),

		resolutionDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tenant",
			Name:      "resolution_duration_seconds",
			Help:      "Histogram of tenant resolution times",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 8),
		}, []string{"outcome"}),

		limitChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "limits",
			Name:      "checks_total",
			Help:      "Resource limit checks by resource and result",
		}, []string{"resource", "result"}),

		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code",
		}, []string{"method", "route", "code"}),

		requestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of HTTP request durations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "dispatched_total",
			Help:      "Scheduled notifications delivered by the dispatcher",
		}),

		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tenant",
			Name:      "subscriptions_expired_total",
			Help:      "Tenants moved to expired by the subscription worker",
		}),
	}
}

// Collectors returns every instrument for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.resolutions, m.resolutionDur, m.limitChecks,
		m.requests, m.requestDur, m.dispatched, m.expired,
	}
}

// Register adds the instruments to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ResolverObserver feeds tenant resolution outcomes.
func (m *Metrics) ResolverObserver() tenant.Observer {
	return func(outcome string, elapsed time.Duration) {
		m.resolutions.WithLabelValues(outcome).Inc()
		m.resolutionDur.WithLabelValues(outcome).Observe(elapsed.Seconds())
	}
}

// LimitObserver feeds limit check results.
func (m *Metrics) LimitObserver() limits.CheckObserver {
	return func(res limits.Resource, allowed bool) {
		result := "allowed"
		if !allowed {
			result = "denied"
		}
		m.limitChecks.WithLabelValues(string(res), result).Inc()
	}
}

// NotificationsDispatched adds n delivered notifications.
func (m *Metrics) NotificationsDispatched(n int) { m.dispatched.Add(float64(n)) }

// SubscriptionsExpired adds n tenants moved to expired.
func (m *Metrics) SubscriptionsExpired(n int) { m.expired.Add(float64(n)) }

// Middleware records request counts and durations labelled with the chi
// route pattern, so ids in paths do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(code)).Inc()
		m.requestDur.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
