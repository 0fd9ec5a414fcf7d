package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors for the collaboration server.
//
// Naming convention: canvaslab_<subsystem>_<name>.
// Gauges track current state (rooms, sessions); counters track cumulative
// events (frames, snapshots, sweeps).
var (
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "canvaslab",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of rooms loaded in memory",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "canvaslab",
		Subsystem: "websocket",
		Name:      "sessions_active",
		Help:      "Current number of connected WebSocket sessions",
	})

	FramesBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "canvaslab",
		Subsystem: "websocket",
		Name:      "frames_broadcast_total",
		Help:      "Total frames fanned out to sessions",
	}, []string{"type"})

	CommandsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "canvaslab",
		Subsystem: "room",
		Name:      "commands_total",
		Help:      "Total commands processed by room actors",
	}, []string{"type", "status"})

	SnapshotWrites = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "canvaslab",
		Subsystem: "store",
		Name:      "snapshot_writes_total",
		Help:      "Total snapshot files written",
	})

	SnapshotErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "canvaslab",
		Subsystem: "store",
		Name:      "snapshot_errors_total",
		Help:      "Total snapshot writes that failed",
	})

	RoomsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "canvaslab",
		Subsystem: "sweeper",
		Name:      "rooms_swept_total",
		Help:      "Total rooms deleted by the retention sweeper",
	})
)
