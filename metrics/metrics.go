package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var CTFsCreatedCounter = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "ctfbot_ctfs_created_total",
		Help: "Number of ctfs provisioned",
	},
)

var CTFsRemovedCounter = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "ctfbot_ctfs_removed_total",
		Help: "Number of ctfs removed",
	},
)

var LifecycleTransitionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ctfbot_lifecycle_transition_total",
	Help: "Lifecycle transitions by target state",
}, []string{"state"})

// LeakedResourceCounter counts platform resources left behind by a failed provisioning or removal.
var LeakedResourceCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ctfbot_leaked_resource_total",
	Help: "Platform resources that could not be created consistently or deleted",
}, []string{"resource"})

var FlagsCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ctfbot_flags_total",
	Help: "Number of flags registered through the flag command",
})

var ActiveRelaysGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "ctfbot_active_relays",
	Help: "Number of running solve relays",
})

var RelayPollCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ctfbot_relay_poll_total",
	Help: "Solve relay polls by outcome",
}, []string{"outcome"})

var SolvesRelayedCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ctfbot_solves_relayed_total",
	Help: "Number of solves announced by the relays",
})

var SinkErrorCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ctfbot_solve_sink_error_total",
	Help: "Solve events a sink failed to deliver",
}, []string{"sink"})
