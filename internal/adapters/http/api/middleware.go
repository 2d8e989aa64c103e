package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/facegate/pkg/metrics"
)

// MetricsMiddleware records request count and latency per endpoint. Error
// responses are counted under the kiosk error code written by writeError, or
// a status class when the handler wrote no code.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		ms := float64(time.Since(start).Milliseconds())
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, ms)

		if rec.status < http.StatusBadRequest {
			return
		}
		kind := rec.code
		if kind == "" {
			kind = statusClass(rec.status)
		}
		metrics.RecordErrorByEndpoint(endpoint, r.Method, kind)
		if rec.status >= http.StatusInternalServerError {
			metrics.RecordErrorByComponent("http", kind)
		}
	}
}

func statusClass(status int) string {
	switch {
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case status >= http.StatusInternalServerError:
		return "server_error"
	default:
		return "client_error"
	}
}

// statusRecorder captures the status and the error code of a response.
type statusRecorder struct {
	http.ResponseWriter
	status int
	code   string
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) setErrorCode(code string) { r.code = code }

type errorCoder interface {
	setErrorCode(code string)
}
