package metrics

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"payment-gateway/internal/config"

	"github.com/VictoriaMetrics/metrics"
)

func Setup(cfg config.Metrics, logger *slog.Logger) {
	if cfg.URL == "" {
		return
	}

	err := metrics.InitPush(cfg.URL, time.Duration(cfg.IntervalMs)*time.Millisecond, cfg.CommonLabels, true)
	if err != nil {
		logger.Error("Error initializing metrics push", "error", err)
	}
}

// Handler exposes every registered metric in Prometheus text format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
}

func OrdersCreated() *metrics.Counter {
	return metrics.GetOrCreateCounter("orders_created_total")
}

func PaymentsCreated(method string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`payments_created_total{method=%q}`, method))
}

func PaymentsSettled(method, status string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`payments_settled_total{method=%q,status=%q}`, method, status))
}

func SettlementsSkipped() *metrics.Counter {
	return metrics.GetOrCreateCounter("settlements_skipped_total")
}

func SettlementDuration(method string) *metrics.Histogram {
	return metrics.GetOrCreateHistogram(fmt.Sprintf(`settlement_duration_seconds{method=%q}`, method))
}

func EventsPublished(eventType string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`events_published_total{type=%q}`, eventType))
}

func EventsFailed(eventType string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`events_failed_total{type=%q}`, eventType))
}

func EventsDropped(eventType string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`events_dropped_total{type=%q}`, eventType))
}

func HTTPRequests(method, route string, status int) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`http_requests_total{method=%q,route=%q,status="%d"}`, method, route, status))
}

func HTTPRequestDuration(method, route string) *metrics.Histogram {
	return metrics.GetOrCreateHistogram(fmt.Sprintf(`http_request_duration_seconds{method=%q,route=%q}`, method, route))
}
