package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus 基于 Prometheus 的 Recorder 实现，首次使用时注册
type Prometheus struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	created     *prometheus.CounterVec
	batchItems  *prometheus.CounterVec
	reconciled  *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus reg 为 nil 时使用默认注册表，namespace 为空时使用 kabisilya
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "kabisilya"
	}
	return &Prometheus{reg: reg, namespace: namespace}
}

func (p *Prometheus) ensureRegistered() {
	p.once.Do(func() {
		p.created = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assignment",
			Name:      "created_total",
			Help:      "Assignments persisted, by write path.",
		}, []string{"path"})
		p.batchItems = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assignment",
			Name:      "batch_items_total",
			Help:      "Bulk and import items by outcome.",
		}, []string{"path", "outcome"})
		p.reconciled = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assignment",
			Name:      "reconcile_records_total",
			Help:      "External sync records by conflict policy, dry-run flag and outcome.",
		}, []string{"policy", "dry_run", "outcome"})
		p.transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assignment",
			Name:      "status_transitions_total",
			Help:      "Applied status transitions.",
		}, []string{"from", "to"})

		p.reg.MustRegister(p.created, p.batchItems, p.reconciled, p.transitions)
	})
}

func (p *Prometheus) AssignmentsCreated(path string, n int) {
	if n <= 0 {
		return
	}
	p.ensureRegistered()
	p.created.WithLabelValues(path).Add(float64(n))
}

func (p *Prometheus) BatchItems(path, outcome string, n int) {
	if n <= 0 {
		return
	}
	p.ensureRegistered()
	p.batchItems.WithLabelValues(path, outcome).Add(float64(n))
}

func (p *Prometheus) ReconcileRecords(policy string, dryRun bool, outcome string, n int) {
	if n <= 0 {
		return
	}
	p.ensureRegistered()
	p.reconciled.WithLabelValues(policy, strconv.FormatBool(dryRun), outcome).Add(float64(n))
}

func (p *Prometheus) StatusTransition(from, to string) {
	p.ensureRegistered()
	p.transitions.WithLabelValues(from, to).Inc()
}
