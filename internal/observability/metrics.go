package observability

import (
	"strconv"
	"sync"
)

// Metrics provides basic in-memory counters for lifecycle operations and the
// admin API. Counters reset on restart.
type Metrics struct {
	mu           sync.Mutex
	opCount      map[string]int64
	opErrorCount map[string]int64
	requestCount map[string]int64
	errorCount   map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		opCount:      make(map[string]int64),
		opErrorCount: make(map[string]int64),
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordOp increments the counter for a lifecycle operation.
func (m *Metrics) RecordOp(op string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opCount[op]++
}

// RecordOpError increments the error counter for a lifecycle operation,
// keyed by operation and error code.
func (m *Metrics) RecordOpError(op, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opErrorCount[op+"|"+code]++
}

// RecordRequest increments counters for admin API requests.
func (m *Metrics) RecordRequest(path, method string, status int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[requestKey(path, method, status)]++
}

// RecordError increments admin API error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[path+"|"+method+"|"+code]++
}

// Snapshot returns a copy of all counters for the admin metrics endpoint.
func (m *Metrics) Snapshot() map[string]map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]map[string]int64{
		"operations":       copyCounters(m.opCount),
		"operation_errors": copyCounters(m.opErrorCount),
		"requests":         copyCounters(m.requestCount),
		"request_errors":   copyCounters(m.errorCount),
	}
}

func copyCounters(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func requestKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
