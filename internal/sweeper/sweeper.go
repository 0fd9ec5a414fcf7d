// Package sweeper implements the retention policy: rooms untouched for
// longer than the horizon lose their snapshot and uploads. Live rooms
// are never swept, whatever their recorded age.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"canvaslab/internal/logging"
	"canvaslab/internal/metrics"
	"canvaslab/internal/room"
	"canvaslab/internal/store"
)

const sweepInterval = 24 * time.Hour

// Sweeper walks the snapshot directory on a daily schedule.
type Sweeper struct {
	reg     *room.Registry
	st      *store.Store
	horizon time.Duration
	log     *zap.Logger
}

// New builds a sweeper with the given retention horizon.
func New(reg *room.Registry, st *store.Store, horizon time.Duration, log *zap.Logger) *Sweeper {
	if log == nil {
		log = logging.L()
	}
	return &Sweeper{reg: reg, st: st, horizon: horizon, log: log}
}

// Run sweeps once a day until the context ends. The first sweep happens
// one interval after start, not at start, so a rolling restart does not
// stampede the disk.
func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.Sweep(); err != nil {
				s.log.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep deletes every on-disk room older than the horizon that is not
// currently live. It returns how many rooms were removed. Exposed for
// the manual trigger endpoint.
func (s *Sweeper) Sweep() (int, error) {
	entries, err := s.st.List()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-s.horizon)
	removed := 0
	for _, e := range entries {
		if !e.LastModifiedAt.Before(cutoff) {
			continue
		}
		if _, live := s.reg.Lookup(e.Name); live {
			continue
		}
		deleted, err := s.reg.DeleteIdle(e.Name)
		if err != nil {
			s.log.Error("sweep delete failed", zap.String("room", e.Name), zap.Error(err))
			continue
		}
		if deleted {
			removed++
			metrics.RoomsSwept.Inc()
			s.log.Info("swept room",
				zap.String("room", e.Name),
				zap.Time("lastModifiedAt", e.LastModifiedAt))
		}
	}
	if removed > 0 {
		s.log.Info("sweep finished", zap.Int("removed", removed))
	}
	return removed, nil
}
