package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/tablefsm/internal/fsm"
)

func TransitionsCounter(machine, from, to string, origin fsm.Origin) prometheus.Counter {
	return transitionsTotal.WithLabelValues(machine, from, to, string(origin))
}

func GuardRedirectsCounter(machine, state, reason string) prometheus.Counter {
	return guardRedirectsTotal.WithLabelValues(machine, state, reason)
}

func DeferredDrainsCounter(machine, state string) prometheus.Counter {
	return deferredDrainsTotal.WithLabelValues(machine, state)
}
