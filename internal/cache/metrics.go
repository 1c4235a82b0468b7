package cache

import (
	"sync/atomic"
	"time"
)

// RevocationMetrics counts revocation store traffic for /metrics.
type RevocationMetrics struct {
	Lookups     int64 `json:"lookups"`
	Revoked     int64 `json:"revoked_hits"`
	Revocations int64 `json:"revocations"`
	Errors      int64 `json:"errors"`
	StartTime   int64 `json:"start_time"`
}

func NewRevocationMetrics() *RevocationMetrics {
	return &RevocationMetrics{StartTime: time.Now().Unix()}
}

func (m *RevocationMetrics) recordLookup(revoked bool) {
	atomic.AddInt64(&m.Lookups, 1)
	if revoked {
		atomic.AddInt64(&m.Revoked, 1)
	}
}

func (m *RevocationMetrics) recordRevocation() {
	atomic.AddInt64(&m.Revocations, 1)
}

func (m *RevocationMetrics) recordError() {
	atomic.AddInt64(&m.Errors, 1)
}

func (m *RevocationMetrics) Snapshot() RevocationMetrics {
	return RevocationMetrics{
		Lookups:     atomic.LoadInt64(&m.Lookups),
		Revoked:     atomic.LoadInt64(&m.Revoked),
		Revocations: atomic.LoadInt64(&m.Revocations),
		Errors:      atomic.LoadInt64(&m.Errors),
		StartTime:   m.StartTime,
	}
}
