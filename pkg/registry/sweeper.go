package registry

import (
	"context"
	"time"

	"github.com/nacoslite/nacoslite/pkg/log"
	"github.com/nacoslite/nacoslite/pkg/storage"
)

const (
	// sweepInterval is how often the soft-state sweep runs
	sweepInterval = 5 * time.Second
	// staleAfter is how long an ephemeral instance may go without a
	// heartbeat before the sweep marks it unhealthy. The sweep never
	// deletes; the client's next heartbeat revives the row.
	staleAfter = 30 * time.Second
)

// Sweeper downs ephemeral instances whose heartbeats stopped
type Sweeper struct {
	store  storage.Store
	stopCh chan struct{}
}

// NewSweeper creates an instance health sweeper
func NewSweeper(store storage.Store) *Sweeper {
	return &Sweeper{store: store, stopCh: make(chan struct{})}
}

// Start starts the sweep loop
func (s *Sweeper) Start() {
	go s.run()
}

// Stop stops the sweep loop
func (s *Sweeper) Stop() {
	close(s.stopCh)
}

func (s *Sweeper) run() {
	logger := log.WithComponent("registry")
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-staleAfter).Unix()
			n, err := s.store.MarkStaleInstancesUnhealthy(context.Background(), cutoff)
			if err != nil {
				logger.Warn().Err(err).Msg("failed to sweep stale instances")
				continue
			}
			if n > 0 {
				logger.Info().Int64("instances", n).Msg("marked stale instances unhealthy")
			}
		case <-s.stopCh:
			return
		}
	}
}
