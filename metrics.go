package authflow

import "sync/atomic"

// MetricID identifies one counter in the in-process metrics block.
type MetricID uint16

const (
	// MetricRegisterSuccess counts completed registrations.
	MetricRegisterSuccess MetricID = iota
	// MetricRegisterDuplicate counts registrations rejected on conflict.
	MetricRegisterDuplicate
	// MetricLoginSuccess counts successful credential logins.
	MetricLoginSuccess
	// MetricLoginFailure counts rejected credential logins.
	MetricLoginFailure
	// MetricLoginRateLimited counts throttled login attempts.
	MetricLoginRateLimited
	// MetricOAuthLogin counts sessions issued from provider callbacks.
	MetricOAuthLogin
	// MetricRefreshSuccess counts access tokens re-issued from refresh tokens.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh attempts.
	MetricRefreshFailure
	// MetricOTPRequest counts verification codes issued.
	MetricOTPRequest
	// MetricOTPValidateSuccess counts accounts verified by OTP.
	MetricOTPValidateSuccess
	// MetricOTPValidateFailure counts rejected OTP validations.
	MetricOTPValidateFailure
	// MetricPasswordResetRequest counts reset tokens issued.
	MetricPasswordResetRequest
	// MetricPasswordResetSuccess counts consumed reset tokens.
	MetricPasswordResetSuccess
	// MetricPasswordResetFailure counts rejected reset confirmations.
	MetricPasswordResetFailure
	// MetricPasswordChangeSuccess counts completed password changes.
	MetricPasswordChangeSuccess
	// MetricPasswordChangeFailure counts rejected password changes.
	MetricPasswordChangeFailure
	// MetricAccountDeleted counts irreversible account deletions.
	MetricAccountDeleted
	// MetricRateLimitHit counts throttle rejections across all flows.
	MetricRateLimitHit

	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds per-flow atomic counters. When disabled all operations are
// no-ops.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a Metrics block configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
	}
}

// Enabled reports whether counting is active.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter named by id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value reads the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot deep-copies all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricIDCount),
	}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.Value(id)
	}
	return snap
}
