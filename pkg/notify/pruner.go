package notify

import (
	"context"
	"time"

	"github.com/nacoslite/nacoslite/pkg/log"
	"github.com/nacoslite/nacoslite/pkg/storage"
)

// Pruner removes subscriber rows that have stopped re-polling. The
// listener upserts a row on every poll but nothing else ever deletes
// them, so an unbounded table is the alternative.
type Pruner struct {
	store    storage.Store
	interval time.Duration
	ttl      time.Duration
	stopCh   chan struct{}
}

// NewPruner creates a pruner. ttl should be at least twice the maximum
// long-poll window so an idle-but-connected listener is never dropped
// between polls.
func NewPruner(store storage.Store, interval, ttl time.Duration) *Pruner {
	return &Pruner{
		store:    store,
		interval: interval,
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the prune loop
func (p *Pruner) Start() {
	go p.run()
}

// Stop stops the prune loop
func (p *Pruner) Stop() {
	close(p.stopCh)
}

func (p *Pruner) run() {
	logger := log.WithComponent("notify")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-p.ttl).Unix()
			n, err := p.store.PruneSubscribers(context.Background(), cutoff)
			if err != nil {
				logger.Warn().Err(err).Msg("failed to prune subscribers")
				continue
			}
			if n > 0 {
				logger.Debug().Int64("pruned", n).Msg("pruned stale subscribers")
			}
		case <-p.stopCh:
			return
		}
	}
}
