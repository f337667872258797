package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	gamesStarted prometheus.Counter
	gamesWon     prometheus.Counter
	moves        *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	metrics := &Metrics{
		gatherer: registry,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memorygame_http_requests_total",
				Help: "Total HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memorygame_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		gamesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memorygame_games_started_total",
			Help: "Total games started",
		}),
		gamesWon: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memorygame_games_won_total",
			Help: "Total games won",
		}),
		moves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memorygame_moves_total",
				Help: "Total accepted moves by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		metrics.requests,
		metrics.duration,
		metrics.gamesStarted,
		metrics.gamesWon,
		metrics.moves,
	)

	return metrics
}

func (that *Metrics) handler() http.Handler {
	return promhttp.HandlerFor(that.gatherer, promhttp.HandlerOpts{})
}

func (that *Metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := routePattern(r)
		that.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		that.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (that *Metrics) observeMove(match, wonNow bool) {
	outcome := "miss"
	if match {
		outcome = "match"
	}
	that.moves.WithLabelValues(outcome).Inc()

	if wonNow {
		that.gamesWon.Inc()
	}
}

// routePattern - the matched chi pattern, so unknown paths do not explode label cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	return "unmatched"
}
