package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects gateway counters
type Metrics struct {
	TotalRequests   atomic.Uint64
	Extractions     atomic.Uint64
	ExtractionFails atomic.Uint64
	CreditsCharged  atomic.Uint64
	Denials         atomic.Uint64
	CacheHits       atomic.Uint64
	Coalesced       atomic.Uint64
	ProxiedBytes    atomic.Uint64
	ArchiveJobs     atomic.Uint64

	started   time.Time
	platforms sync.Map // platform -> *PlatformStats
}

// PlatformStats tracks outcomes and fallback method usage per platform
type PlatformStats struct {
	Requests  atomic.Uint64
	Successes atomic.Uint64
	Failures  atomic.Uint64
	totalMs   atomic.Uint64
	methods   sync.Map // method -> *MethodStats
}

// MethodStats counts how often one fallback method was tried and won
type MethodStats struct {
	Attempts atomic.Uint64
	Wins     atomic.Uint64
}

// New creates an empty collector
func New() *Metrics {
	return &Metrics{started: time.Now()}
}

var global = New()

// GetMetrics returns the process-wide collector
func GetMetrics() *Metrics {
	return global
}

func (m *Metrics) platform(name string) *PlatformStats {
	v, _ := m.platforms.LoadOrStore(name, &PlatformStats{})
	return v.(*PlatformStats)
}

func (p *PlatformStats) method(name string) *MethodStats {
	v, _ := p.methods.LoadOrStore(name, &MethodStats{})
	return v.(*MethodStats)
}

// IncrementRequests counts one inbound API request
func (m *Metrics) IncrementRequests() {
	m.TotalRequests.Add(1)
}

// RecordAttempt counts one fallback method attempt
func (m *Metrics) RecordAttempt(platform, method string, succeeded bool) {
	ms := m.platform(platform).method(method)
	ms.Attempts.Add(1)
	if succeeded {
		ms.Wins.Add(1)
	}
}

// RecordExtraction counts the terminal outcome of a whole chain
func (m *Metrics) RecordExtraction(platform string, succeeded bool, took time.Duration) {
	ps := m.platform(platform)
	ps.Requests.Add(1)
	ps.totalMs.Add(uint64(took.Milliseconds()))
	if succeeded {
		ps.Successes.Add(1)
		m.Extractions.Add(1)
		return
	}
	ps.Failures.Add(1)
	m.ExtractionFails.Add(1)
}

// GetSnapshot returns current metrics snapshot
func (m *Metrics) GetSnapshot() map[string]interface{} {
	return map[string]interface{}{
		"uptime_seconds":      int64(time.Since(m.started).Seconds()),
		"total_requests":      m.TotalRequests.Load(),
		"extractions":         m.Extractions.Load(),
		"extraction_failures": m.ExtractionFails.Load(),
		"credits_charged":     m.CreditsCharged.Load(),
		"denials":             m.Denials.Load(),
		"cache_hits":          m.CacheHits.Load(),
		"coalesced":           m.Coalesced.Load(),
		"proxied_bytes":       m.ProxiedBytes.Load(),
		"archive_jobs":        m.ArchiveJobs.Load(),
		"platforms":           m.platformSnapshot(),
	}
}

func (m *Metrics) platformSnapshot() map[string]interface{} {
	out := make(map[string]interface{})

	m.platforms.Range(func(key, value interface{}) bool {
		ps := value.(*PlatformStats)
		total := ps.Requests.Load()

		successRate, avgMs := float64(0), uint64(0)
		if total > 0 {
			successRate = float64(ps.Successes.Load()) / float64(total) * 100
			avgMs = ps.totalMs.Load() / total
		}

		methods := make(map[string]interface{})
		ps.methods.Range(func(k, v interface{}) bool {
			ms := v.(*MethodStats)
			methods[k.(string)] = map[string]uint64{
				"attempts": ms.Attempts.Load(),
				"wins":     ms.Wins.Load(),
			}
			return true
		})

		out[key.(string)] = map[string]interface{}{
			"requests":     total,
			"successes":    ps.Successes.Load(),
			"failures":     ps.Failures.Load(),
			"success_rate": successRate,
			"avg_ms":       avgMs,
			"methods":      methods,
		}
		return true
	})

	return out
}
