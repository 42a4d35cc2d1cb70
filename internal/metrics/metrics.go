// Package metrics exposes Prometheus counters for machine transitions, guard
// redirects and deferred drains.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"github.com/roach88/tablefsm/internal/fsm"
)

const namespacePrefix = "tablefsm_"

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablefsm_transitions_total",
		Help: "Total number of executed state transitions by machine, source state, target state and origin",
	}, []string{"machine", "from", "to", "origin"})

	guardRedirectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablefsm_guard_redirects_total",
		Help: "Total number of guard failures answered by a redirect to a safe state",
	}, []string{"machine", "state", "reason"})

	deferredDrainsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablefsm_deferred_drains_total",
		Help: "Total number of drains stopped on the step budget with a transition still armed",
	}, []string{"machine", "state"})
)

// Guard redirect reasons.
const (
	ReasonActivationRequirements = "activation_requirements"
	ReasonStopCondition          = "stop_condition"
	ReasonLogicLeak              = "logic_condition_leak"
)

// RecordTransition counts one executed transition.
func RecordTransition(machine, from, to string, origin fsm.Origin) {
	transitionsTotal.WithLabelValues(
		labelOrUnknown(machine),
		labelOrUnknown(from),
		labelOrUnknown(to),
		labelOrUnknown(string(origin)),
	).Inc()
}

// IncGuardRedirect counts a guard failure in state answered by a redirect.
func IncGuardRedirect(machine, state, reason string) {
	guardRedirectsTotal.WithLabelValues(
		labelOrUnknown(machine),
		labelOrUnknown(state),
		normalizeReason(reason),
	).Inc()
}

// IncDeferredDrain counts a drain deferred while in state.
func IncDeferredDrain(machine, state string) {
	deferredDrainsTotal.WithLabelValues(labelOrUnknown(machine), labelOrUnknown(state)).Inc()
}

func labelOrUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return "unknown"
	}
	return v
}

func normalizeReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case ReasonActivationRequirements, ReasonStopCondition, ReasonLogicLeak:
		return strings.ToLower(strings.TrimSpace(reason))
	default:
		return "unknown"
	}
}

// observer feeds engine notifications into the counters.
type observer struct{}

// Observer returns an fsm.Observer that counts transitions and deferred
// drains. The machine name comes from each notification.
func Observer() fsm.Observer {
	return observer{}
}

func (observer) OnTransition(t fsm.Transition) {
	RecordTransition(t.Machine, t.FromName, t.ToName, t.Origin)
}

func (observer) OnDeferred(d fsm.Deferral) {
	IncDeferredDrain(d.Machine, d.StateName)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// WriteText writes the tablefsm metric families in the Prometheus text
// exposition format.
func WriteText(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), namespacePrefix) {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
