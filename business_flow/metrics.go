package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cards drawn partitioned by outcome type and whether the label came from the catalog
	cardsDrawnTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omikuji_cards_drawn_total",
			Help: "Total number of cards drawn",
		},
		[]string{"type", "source"},
	)

	// Finalized sessions partitioned by official/casual and how the card was picked
	sessionsFinalizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omikuji_sessions_finalized_total",
			Help: "Total number of finalized sessions",
		},
		[]string{"kind", "pick"},
	)

	// Writes that lost a race on a unique constraint
	conflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omikuji_conflicts_total",
			Help: "Total number of write conflicts",
		},
		[]string{"operation"},
	)

	sessionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "omikuji_sessions_created_total",
			Help: "Total number of sessions created",
		},
	)
)
