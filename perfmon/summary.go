package perfmon

import (
	"sort"
	"time"

	"github.com/martinemde/aimux/logging"
)

// Metrics is an all-time snapshot of the aggregate counters.
type Metrics struct {
	TotalRequests       int64                `json:"total_requests"`
	SuccessfulRequests  int64                `json:"successful_requests"`
	FailedRequests      int64                `json:"failed_requests"`
	SlowRequests        int64                `json:"slow_requests"`
	CompletedRequests   int64                `json:"completed_requests"`
	RejectedRequests    int64                `json:"rejected_requests"`
	AverageResponseTime float64              `json:"average_response_time_ms"`
	MinResponseTime     float64              `json:"min_response_time_ms"`
	MaxResponseTime     float64              `json:"max_response_time_ms"`
	ErrorsByKind        map[string]int64     `json:"errors_by_kind"`
	RejectionsByKind    map[string]int64     `json:"rejections_by_kind"`
	RequestsByService   map[string]int64     `json:"requests_by_service"`
	RequestsByModel     map[string]int64     `json:"requests_by_model"`
	ResponseTimes       map[string][]float64 `json:"response_times_by_service"`
	LastResetTime       time.Time            `json:"last_reset_time"`
}

// ServiceMetrics describes one service. TotalRequests is all-time; the
// latency fields cover the rolling window only.
type ServiceMetrics struct {
	TotalRequests       int64     `json:"total_requests"`
	AverageResponseTime float64   `json:"average_response_time_ms"`
	MinResponseTime     float64   `json:"min_response_time_ms"`
	MaxResponseTime     float64   `json:"max_response_time_ms"`
	Samples             int       `json:"samples"`
	RecentResponseTimes []float64 `json:"recent_response_times_ms"`
}

// Overview holds the headline counts and rates.
type Overview struct {
	TotalRequests      int64   `json:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests"`
	FailedRequests     int64   `json:"failed_requests"`
	ActiveRequests     int     `json:"active_requests"`
	RejectedRequests   int64   `json:"rejected_requests"`
	SuccessRate        float64 `json:"success_rate"`
	ErrorRate          float64 `json:"error_rate"`
	SlowRequestRate    float64 `json:"slow_request_rate"`
}

// Performance holds the all-time latency aggregates.
type Performance struct {
	AverageResponseTime  float64 `json:"average_response_time_ms"`
	MinResponseTime      float64 `json:"min_response_time_ms"`
	MaxResponseTime      float64 `json:"max_response_time_ms"`
	SlowRequestThreshold float64 `json:"slow_request_threshold_ms"`
}

// ServiceSummary pairs a service name with its metrics.
type ServiceSummary struct {
	Service string         `json:"service"`
	Metrics ServiceMetrics `json:"metrics"`
}

// Summary is a read-only snapshot of the monitor.
type Summary struct {
	Overview      Overview         `json:"overview"`
	Performance   Performance      `json:"performance"`
	Services      []ServiceSummary `json:"services"`
	Errors        map[string]int64 `json:"errors"`
	Models        map[string]int64 `json:"models"`
	LastResetTime time.Time        `json:"last_reset_time"`
}

// Metrics returns a copy of the all-time aggregates.
func (m *Monitor) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	times := make(map[string][]float64, len(m.windows))
	for svc, w := range m.windows {
		times[svc] = w.Values()
	}
	return Metrics{
		TotalRequests:       m.total,
		SuccessfulRequests:  m.successful,
		FailedRequests:      m.failed,
		SlowRequests:        m.slow,
		CompletedRequests:   m.completed,
		RejectedRequests:    m.rejected,
		RejectionsByKind:    copyCounts(m.byReject),
		AverageResponseTime: m.meanMs,
		MinResponseTime:     m.minMs,
		MaxResponseTime:     m.maxMs,
		ErrorsByKind:        copyCounts(m.byError),
		RequestsByService:   copyCounts(m.byService),
		RequestsByModel:     copyCounts(m.byModel),
		ResponseTimes:       times,
		LastResetTime:       m.lastReset,
	}
}

// ServiceMetrics returns the metrics of one service. An unknown service
// yields zeros.
func (m *Monitor) ServiceMetrics(service string) ServiceMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.serviceMetricsLocked(service)
}

func (m *Monitor) serviceMetricsLocked(service string) ServiceMetrics {
	sm := ServiceMetrics{
		TotalRequests:       m.byService[service],
		RecentResponseTimes: []float64{},
	}
	w, ok := m.windows[service]
	if !ok {
		return sm
	}
	sm.AverageResponseTime, sm.MinResponseTime, sm.MaxResponseTime = w.Stats()
	sm.Samples = w.Len()
	sm.RecentResponseTimes = w.Last(recentSamples)
	return sm
}

// SuccessRate returns successful requests as a percentage of all requests.
func (m *Monitor) SuccessRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return percent(m.successful, m.total)
}

// ErrorRate returns failed requests as a percentage of all requests.
func (m *Monitor) ErrorRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return percent(m.failed, m.total)
}

// SlowRequestRate returns slow requests as a percentage of all requests.
func (m *Monitor) SlowRequestRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return percent(m.slow, m.total)
}

// Summary returns a consistent snapshot of every aggregate.
func (m *Monitor) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	services := make([]string, 0, len(m.byService))
	for svc := range m.byService {
		services = append(services, svc)
	}
	sort.Strings(services)

	perService := make([]ServiceSummary, len(services))
	for i, svc := range services {
		perService[i] = ServiceSummary{Service: svc, Metrics: m.serviceMetricsLocked(svc)}
	}

	return Summary{
		Overview: Overview{
			TotalRequests:      m.total,
			SuccessfulRequests: m.successful,
			FailedRequests:     m.failed,
			ActiveRequests:     len(m.active),
			RejectedRequests:   m.rejected,
			SuccessRate:        percent(m.successful, m.total),
			ErrorRate:          percent(m.failed, m.total),
			SlowRequestRate:    percent(m.slow, m.total),
		},
		Performance: Performance{
			AverageResponseTime:  m.meanMs,
			MinResponseTime:      m.minMs,
			MaxResponseTime:      m.maxMs,
			SlowRequestThreshold: durationMillis(m.threshold),
		},
		Services:      perService,
		Errors:        copyCounts(m.byError),
		Models:        copyCounts(m.byModel),
		LastResetTime: m.lastReset,
	}
}

// LogSummary emits the summary as one overview event plus one event per
// service.
func (m *Monitor) LogSummary() {
	s := m.Summary()

	m.log.Info("performance metrics summary", logging.Fields(
		logging.FieldType, "metrics_summary",
		"total_requests", s.Overview.TotalRequests,
		"successful_requests", s.Overview.SuccessfulRequests,
		"failed_requests", s.Overview.FailedRequests,
		"active_requests", s.Overview.ActiveRequests,
		"success_rate", s.Overview.SuccessRate,
		"error_rate", s.Overview.ErrorRate,
		"slow_request_rate", s.Overview.SlowRequestRate,
	))
	for _, svc := range s.Services {
		m.log.Info("service performance metrics", logging.Fields(
			logging.FieldType, "service_metrics",
			logging.FieldService, svc.Service,
			"total_requests", svc.Metrics.TotalRequests,
			"average_response_time_ms", svc.Metrics.AverageResponseTime,
			"min_response_time_ms", svc.Metrics.MinResponseTime,
			"max_response_time_ms", svc.Metrics.MaxResponseTime,
			"recent_response_times_ms", svc.Metrics.RecentResponseTimes,
		))
	}
}

func percent(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
