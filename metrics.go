package lockgate

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by lockgate APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricCodeRequested is an exported constant or variable used by the security engine.
	MetricCodeRequested MetricID = iota
	// MetricCodeVerifySuccess is an exported constant or variable used by the security engine.
	MetricCodeVerifySuccess
	// MetricCodeVerifyFailure is an exported constant or variable used by the security engine.
	MetricCodeVerifyFailure
	// MetricCodeRateLimited is an exported constant or variable used by the security engine.
	MetricCodeRateLimited
	// MetricRegistration is an exported constant or variable used by the security engine.
	MetricRegistration
	// MetricPINSetup is an exported constant or variable used by the security engine.
	MetricPINSetup
	// MetricPINVerifySuccess is an exported constant or variable used by the security engine.
	MetricPINVerifySuccess
	// MetricPINVerifyFailure is an exported constant or variable used by the security engine.
	MetricPINVerifyFailure
	// MetricPINLockout is an exported constant or variable used by the security engine.
	MetricPINLockout
	// MetricPINRateLimited is an exported constant or variable used by the security engine.
	MetricPINRateLimited
	// MetricTOTPProvisioned is an exported constant or variable used by the security engine.
	MetricTOTPProvisioned
	// MetricTOTPEnabled is an exported constant or variable used by the security engine.
	MetricTOTPEnabled
	// MetricTOTPVerifySuccess is an exported constant or variable used by the security engine.
	MetricTOTPVerifySuccess
	// MetricTOTPVerifyFailure is an exported constant or variable used by the security engine.
	MetricTOTPVerifyFailure
	// MetricTOTPDisabled is an exported constant or variable used by the security engine.
	MetricTOTPDisabled
	// MetricPasskeyRegistered is an exported constant or variable used by the security engine.
	MetricPasskeyRegistered
	// MetricPasskeyAuthSuccess is an exported constant or variable used by the security engine.
	MetricPasskeyAuthSuccess
	// MetricPasskeyAuthFailure is an exported constant or variable used by the security engine.
	MetricPasskeyAuthFailure
	// MetricPasskeyCounterReplay is an exported constant or variable used by the security engine.
	MetricPasskeyCounterReplay
	// MetricSeedPhraseGenerated is an exported constant or variable used by the security engine.
	MetricSeedPhraseGenerated
	// MetricSeedPhraseRecovered is an exported constant or variable used by the security engine.
	MetricSeedPhraseRecovered
	// MetricSeedPhraseRecoveryFailure is an exported constant or variable used by the security engine.
	MetricSeedPhraseRecoveryFailure
	// MetricSeedPhraseRegenerated is an exported constant or variable used by the security engine.
	MetricSeedPhraseRegenerated
	// MetricSessionUnlock is an exported constant or variable used by the security engine.
	MetricSessionUnlock
	// MetricFullLoginRequired is an exported constant or variable used by the security engine.
	MetricFullLoginRequired
	// MetricRateLimitHit is an exported constant or variable used by the security engine.
	MetricRateLimitHit
	// MetricStatusLatency is an exported constant or variable used by the security engine.
	MetricStatusLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics defines a public type used by lockgate APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot defines a public type used by lockgate APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded at all.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the status latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc describes the inc operation and its observable behavior.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe describes the observe operation and its observable behavior.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricStatusLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value describes the value operation and its observable behavior.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricStatusLatency].buckets[i])
		}
		s.Histograms[MetricStatusLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
