package room

import (
	"context"
	"time"

	"go.uber.org/zap"

	"canvaslab/internal/logging"
	"canvaslab/internal/metrics"
	"canvaslab/internal/store"
)

// Writer drains dirty rooms to disk on a fixed cadence. It asks each
// actor for a consistent copy and acknowledges the version it wrote, so
// an edit racing the write keeps the room dirty for the next tick. A
// failed write is retried the same way: the dirty flag only clears
// after a successful rename.
type Writer struct {
	reg      *Registry
	st       *store.Store
	interval time.Duration
	log      *zap.Logger
}

// NewWriter wires the snapshot cadence over a registry.
func NewWriter(reg *Registry, st *store.Store, interval time.Duration, log *zap.Logger) *Writer {
	if log == nil {
		log = logging.L()
	}
	return &Writer{reg: reg, st: st, interval: interval, log: log}
}

// Run loops until the context ends, then makes one final pass.
func (w *Writer) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.Flush()
			return
		case <-t.C:
			w.Flush()
		}
	}
}

// Flush writes every dirty room once. Exposed for shutdown and tests.
func (w *Writer) Flush() {
	for _, r := range w.reg.Rooms() {
		snap, version, dirty, err := r.Snapshot()
		if err != nil || !dirty {
			continue
		}
		if err := w.st.Save(snap); err != nil {
			w.log.Error("snapshot write failed", zap.String("room", r.Name()), zap.Error(err))
			metrics.SnapshotErrors.Inc()
			continue
		}
		r.MarkSaved(version)
		metrics.SnapshotWrites.Inc()
	}
}
