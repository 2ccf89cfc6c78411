// Package metrics registers the server's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Visits counts hits on the landing endpoint.
	Visits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cerke_visits_total",
		Help: "Hits on the landing endpoint.",
	})

	// RoomsOpened counts formed rooms by mode ("random" or "vs_cpu").
	RoomsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cerke_rooms_opened_total",
		Help: "Rooms formed by the matchmaker.",
	}, []string{"mode"})

	// MovesCommitted counts committed moves by wire kind.
	MovesCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cerke_moves_committed_total",
		Help: "Moves committed to a session ledger.",
	}, []string{"kind"})

	// BotMoves counts moves played by the server's bot.
	BotMoves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cerke_bot_moves_total",
		Help: "Moves played by the bot opponent.",
	})

	// GamesEnded counts finished games.
	GamesEnded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cerke_games_ended_total",
		Help: "Games that reached a terminal state.",
	})
)
