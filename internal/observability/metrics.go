package observability

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	authOutcomes  map[string]int64
	totalDuration time.Duration
	totalRequests int64
}

// Snapshot is a point-in-time copy of the counters, suitable for JSON output.
type Snapshot struct {
	Requests          map[string]int64 `json:"requests"`
	Errors            map[string]int64 `json:"errors"`
	AuthOutcomes      map[string]int64 `json:"auth_outcomes"`
	AverageDurationMs float64          `json:"average_duration_ms"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		authOutcomes: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.totalRequests++
	m.totalDuration += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordAuth counts the outcome of an authentication operation such as
// login/success or login/locked.
func (m *Metrics) RecordAuth(operation, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authOutcomes[operation+"/"+strings.ToLower(outcome)]++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Requests:     copyCounts(m.requestCount),
		Errors:       copyCounts(m.errorCount),
		AuthOutcomes: copyCounts(m.authOutcomes),
	}
	if m.totalRequests > 0 {
		snap.AverageDurationMs = float64(m.totalDuration.Microseconds()) / float64(m.totalRequests) / 1000
	}
	return snap
}

// AuthOutcomeKeys returns the recorded auth outcome keys in sorted order.
func (s Snapshot) AuthOutcomeKeys() []string {
	keys := make([]string, 0, len(s.AuthOutcomes))
	for k := range s.AuthOutcomes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
