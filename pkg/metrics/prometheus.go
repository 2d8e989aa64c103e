// Package metrics provides Prometheus metrics for the facegate capture kiosk.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the capture kiosk.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Session lifecycle
	sessionsStarted  prometheus.Counter
	stateTransitions *prometheus.CounterVec
	currentState     *prometheus.GaugeVec
	retakes          prometheus.Counter

	// Liveness detection
	blinkTicks           prometheus.Counter
	blinkTicksSuppressed prometheus.Counter
	blinkEvents          prometheus.Counter
	staleTicks           *prometheus.CounterVec
	lastEAR              prometheus.Gauge
	landmarkLatency      prometheus.Histogram
	landmarkErrors       prometheus.Counter

	// Lighting
	lightingSamples *prometheus.CounterVec
	lastBrightness  prometheus.Gauge

	// Frame feed
	framesReceived     prometheus.Counter
	frameDrops         prometheus.Counter
	frameDecodeErrors  prometheus.Counter
	mailboxUtilization prometheus.Gauge

	// Submission
	submissions       *prometheus.CounterVec
	submissionLatency prometheus.Histogram

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "facegate",
		subsystem:        "capture",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	histogram := func(name, help string) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
			Buckets: m.histogramBuckets,
		})
	}
	counterVec := func(name, help string, l ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		}, l)
	}

	m.sessionsStarted = counter("sessions_started_total", "Sessions that passed local invite validation")
	m.stateTransitions = counterVec("state_transitions_total", "Capture state machine transitions", "from", "to")
	m.currentState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("state"), ConstLabels: labels,
		Help: "1 for the state the capture pipeline is currently in",
	}, []string{"state"})
	m.retakes = counter("retakes_total", "User-initiated retakes")

	m.blinkTicks = counter("blink_ticks_total", "Blink detector ticks evaluated")
	m.blinkTicksSuppressed = counter("blink_ticks_suppressed_total", "Blink ticks suppressed because the frame was too dark")
	m.blinkEvents = counter("blink_events_total", "Confirmed blinks (liveness confirmations)")
	m.staleTicks = counterVec("stale_ticks_total", "Ticks discarded because their detection round had ended", "task")
	m.lastEAR = gauge("eye_aspect_ratio", "Most recent averaged eye aspect ratio")
	m.landmarkLatency = histogram("landmark_latency_milliseconds", "Landmark inference latency in milliseconds")
	m.landmarkErrors = counter("landmark_errors_total", "Landmark inference failures")

	m.lightingSamples = counterVec("lighting_samples_total", "Lighting samples by classified level", "level")
	m.lastBrightness = gauge("brightness", "Most recent sampled perceptual brightness (0-255)")

	m.framesReceived = counter("frames_received_total", "Frames received from the camera source")
	m.frameDrops = counter("frame_drops_total", "Frames overwritten in the mailbox before being read")
	m.frameDecodeErrors = counter("frame_decode_errors_total", "Frames that could not be decoded")
	m.mailboxUtilization = gauge("mailbox_utilization", "Fill ratio of the latest-frame mailbox")

	m.submissions = counterVec("submissions_total", "Enrollment submissions by outcome", "outcome")
	m.submissionLatency = histogram("submission_latency_milliseconds", "Enrollment submission latency in milliseconds")

	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_request_duration_milliseconds"),
		Help: "HTTP request duration in milliseconds", ConstLabels: labels, Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = counterVec("errors_by_component_total", "Errors by component", "component", "error_type")
	m.errorRateByEndpoint = counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = gauge("system_goroutine_count", "Number of goroutines")
}

// RecordSessionStarted increments the started sessions counter.
func RecordSessionStarted() {
	globalManager.sessionsStarted.Inc()
}

// RecordStateTransition records a state machine transition and updates the
// current-state gauge.
func RecordStateTransition(from, to string) {
	globalManager.stateTransitions.WithLabelValues(from, to).Inc()
	globalManager.currentState.WithLabelValues(from).Set(0)
	globalManager.currentState.WithLabelValues(to).Set(1)
}

// RecordRetake increments the retake counter.
func RecordRetake() {
	globalManager.retakes.Inc()
}

// RecordBlinkTick increments the evaluated blink tick counter.
func RecordBlinkTick() {
	globalManager.blinkTicks.Inc()
}

// RecordBlinkTickSuppressed increments the suppressed blink tick counter.
func RecordBlinkTickSuppressed() {
	globalManager.blinkTicksSuppressed.Inc()
}

// RecordBlinkEvent increments the confirmed blink counter.
func RecordBlinkEvent() {
	globalManager.blinkEvents.Inc()
}

// RecordStaleTick records a tick whose round had already ended.
func RecordStaleTick(task string) {
	globalManager.staleTicks.WithLabelValues(task).Inc()
}

// UpdateEAR sets the last observed eye aspect ratio.
func UpdateEAR(ear float64) {
	globalManager.lastEAR.Set(ear)
}

// RecordLandmarkLatency records landmark inference latency in milliseconds.
func RecordLandmarkLatency(latencyMs float64) {
	globalManager.landmarkLatency.Observe(latencyMs)
}

// RecordLandmarkError increments the landmark failure counter.
func RecordLandmarkError() {
	globalManager.landmarkErrors.Inc()
}

// RecordLightingSample records a lighting sample and its brightness.
func RecordLightingSample(level string, brightness float64) {
	globalManager.lightingSamples.WithLabelValues(level).Inc()
	globalManager.lastBrightness.Set(brightness)
}

// RecordFrameReceived increments the received frame counter.
func RecordFrameReceived() {
	globalManager.framesReceived.Inc()
}

// RecordFrameDrop increments the dropped frame counter.
func RecordFrameDrop() {
	globalManager.frameDrops.Inc()
}

// RecordFrameDecodeError increments the frame decode error counter.
func RecordFrameDecodeError() {
	globalManager.frameDecodeErrors.Inc()
}

// UpdateMailboxUtilization sets the latest-frame mailbox fill ratio.
func UpdateMailboxUtilization(utilization float64) {
	globalManager.mailboxUtilization.Set(utilization)
}

// RecordSubmission records a submission outcome (accepted, rejected, network, invalid).
func RecordSubmission(outcome string, latencyMs float64) {
	globalManager.submissions.WithLabelValues(outcome).Inc()
	globalManager.submissionLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
