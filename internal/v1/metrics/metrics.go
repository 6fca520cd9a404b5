// Package metrics declares the Prometheus collectors for the game
// server.
//
// Naming convention: namespace_subsystem_name
//   - namespace: yutnori
//   - subsystem: session, room, game, rate_limit
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks the current number of live TCP client
	// connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "yutnori",
		Subsystem: "session",
		Name:      "connections_active",
		Help:      "Current number of live client connections",
	})

	// FramesRead counts inbound frames across all connections.
	FramesRead = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "yutnori",
		Subsystem: "session",
		Name:      "frames_read_total",
		Help:      "Total frames read from clients",
	})

	// FramesWritten counts outbound frames across all connections.
	FramesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "yutnori",
		Subsystem: "session",
		Name:      "frames_written_total",
		Help:      "Total frames written to clients",
	})

	// ActiveRooms tracks the current number of rooms in the hub table.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "yutnori",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomPlayers tracks membership per room.
	RoomPlayers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "yutnori",
		Subsystem: "room",
		Name:      "players_count",
		Help:      "Number of players in each room",
	}, []string{"room_id"})

	// RejectedActions counts requests refused by a room actor
	// (permission, capacity, or state checks).
	RejectedActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "yutnori",
		Subsystem: "room",
		Name:      "rejected_actions_total",
		Help:      "Total room actions rejected by legality checks",
	}, []string{"action"})

	// GamesStarted counts games that reached CanRoll.
	GamesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "yutnori",
		Subsystem: "game",
		Name:      "started_total",
		Help:      "Total games started",
	})

	// GamesFinished counts games that ended with a winner.
	GamesFinished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "yutnori",
		Subsystem: "game",
		Name:      "finished_total",
		Help:      "Total games finished with a winner",
	})

	// DiceRolls counts rolls by resulting value (-1..5).
	DiceRolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "yutnori",
		Subsystem: "game",
		Name:      "dice_rolls_total",
		Help:      "Total dice rolls by value",
	}, []string{"value"})

	// RateLimitExceeded counts connections refused by the accept gate.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "yutnori",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total connections refused by the rate limiter",
	}, []string{"endpoint"})
)
