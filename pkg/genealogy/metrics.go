package genealogy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	assemblyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "genealogy_tree_assembly_duration_seconds",
		Help:    "Time to load and assemble a tree",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	assemblySize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "genealogy_tree_assembly_persons",
		Help:    "Persons per assembled tree",
		Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
	})

	traversalSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "genealogy_traversal_results",
		Help:    "Persons returned by an ancestor or descendant traversal",
		Buckets: []float64{0, 1, 5, 10, 50, 100, 500},
	}, []string{"direction"})

	inviteOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genealogy_invite_outcomes_total",
		Help: "Invite lifecycle outcomes",
	}, []string{"outcome"})

	membershipBootstraps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "genealogy_membership_bootstraps_total",
		Help: "Owner memberships created on first touch of a personal tree",
	})

	collaboratorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genealogy_collaborator_failures_total",
		Help: "Best-effort collaborator calls that failed",
	}, []string{"collaborator"})
)
