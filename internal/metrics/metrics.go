// Package metrics holds the scanner's process-wide counters. Collectors are
// owned by a Prometheus registry passed in explicitly; nothing is registered
// on the global default registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives scan and remediation events.
type Recorder interface {
	RisksDetected(n int)
	DetectionDuration(d time.Duration)
	SetOpenRisks(n int64)
	RemediationSucceeded()
	RemediationFailed()
}

// Nop discards everything.
type Nop struct{}

func (Nop) RisksDetected(int)               {}
func (Nop) DetectionDuration(time.Duration) {}
func (Nop) SetOpenRisks(int64)              {}
func (Nop) RemediationSucceeded()           {}
func (Nop) RemediationFailed()              {}

// Prometheus is the Recorder backed by client_golang collectors.
type Prometheus struct {
	risksFound         prometheus.Counter
	remediationSuccess prometheus.Counter
	remediationFailure prometheus.Counter
	openRisks          prometheus.Gauge
	detectionDuration  prometheus.Summary
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		risksFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "detection_risks_found_total",
			Help: "Total number of risks detected",
		}),
		remediationSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "remediation_actions_success_total",
			Help: "Total number of successful remediations",
		}),
		remediationFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "remediation_actions_failed_total",
			Help: "Total number of failed remediations",
		}),
		openRisks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "current_open_risks",
			Help: "Current number of open/unresolved risks",
		}),
		detectionDuration: prometheus.NewSummary(prometheus.SummaryOpts{
			Name:       "detection_duration_seconds",
			Help:       "Time taken to complete detection scan",
			Objectives: map[float64]float64{0.5: 0.05, 0.95: 0.01, 0.99: 0.001},
		}),
	}
	var done []prometheus.Collector
	for _, c := range p.collectors() {
		if err := reg.Register(c); err != nil {
			for _, r := range done {
				reg.Unregister(r)
			}
			return nil, err
		}
		done = append(done, c)
	}
	return p, nil
}

// Unregister removes the collectors from reg.
func (p *Prometheus) Unregister(reg prometheus.Registerer) {
	for _, c := range p.collectors() {
		reg.Unregister(c)
	}
}

func (p *Prometheus) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		p.risksFound, p.remediationSuccess, p.remediationFailure, p.openRisks, p.detectionDuration,
	}
}

func (p *Prometheus) RisksDetected(n int) {
	p.risksFound.Add(float64(n))
	p.openRisks.Add(float64(n))
}

func (p *Prometheus) DetectionDuration(d time.Duration) {
	p.detectionDuration.Observe(d.Seconds())
}

func (p *Prometheus) SetOpenRisks(n int64) { p.openRisks.Set(float64(n)) }

// RemediationSucceeded also lowers the open-risk gauge. The gauge is reset
// from the store on the next scan, so it is approximate between scans.
func (p *Prometheus) RemediationSucceeded() {
	p.remediationSuccess.Inc()
	p.openRisks.Dec()
}

func (p *Prometheus) RemediationFailed() { p.remediationFailure.Inc() }
