package notify

import (
	"context"
	"errors"
	"time"

	"github.com/nacoslite/nacoslite/pkg/log"
	"github.com/nacoslite/nacoslite/pkg/storage"
	"github.com/nacoslite/nacoslite/pkg/types"
)

const (
	// DefaultTimeout is the long-poll window when the client sends no
	// Long-Pulling-Timeout header; it is also the hard maximum.
	DefaultTimeout = 30 * time.Second

	// compareInterval bounds publish-to-notification latency for
	// changes that commit without passing through this process's broker.
	compareInterval = 500 * time.Millisecond
)

// Poller runs the per-request long-poll state machine. It keeps no
// state between requests; every comparison reads through the store.
type Poller struct {
	store  storage.Store
	broker *Broker
}

// NewPoller creates a poller over the given store and broker
func NewPoller(store storage.Store, broker *Broker) *Poller {
	return &Poller{store: store, broker: broker}
}

// ClampTimeout normalizes the requested long-poll window to
// (0, DefaultTimeout]. Zero or negative requests are the caller's error.
func ClampTimeout(requested time.Duration) (time.Duration, error) {
	if requested <= 0 {
		return 0, errors.New("invalid long-polling timeout")
	}
	if requested > DefaultTimeout {
		return DefaultTimeout, nil
	}
	return requested, nil
}

// RecordSubscribers upserts one subscriber row per listened triple.
// Recording is best-effort: a storage error is logged and never blocks
// the comparison.
func (p *Poller) RecordSubscribers(ctx context.Context, records []ListenRecord, clientIP string, clientPort int, userAgent, appName string) {
	now := time.Now().Unix()
	for _, rec := range records {
		sub := &types.Subscriber{
			DataID:       rec.Key.DataID,
			Group:        rec.Key.Group,
			Tenant:       rec.Key.Tenant,
			ClientIP:     clientIP,
			ClientPort:   clientPort,
			UserAgent:    userAgent,
			AppName:      appName,
			MD5:          rec.MD5,
			LastPollTime: now,
			CreatedAt:    now,
		}
		if err := p.store.UpsertSubscriber(ctx, sub); err != nil {
			logger := log.WithComponent("notify")
			logger.Warn().Err(err).
				Str("dataId", rec.Key.DataID).Msg("failed to record subscriber")
		}
	}
}

// compare returns the subset of records whose server-side MD5 differs
// from the client's claim. A missing config counts as changed unless
// the client also holds nothing for it.
func (p *Poller) compare(ctx context.Context, records []ListenRecord) ([]types.ConfigKey, error) {
	var changed []types.ConfigKey
	for _, rec := range records {
		cfg, err := p.store.GetConfig(ctx, rec.Key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				if rec.MD5 != "" {
					changed = append(changed, rec.Key)
				}
				continue
			}
			return nil, err
		}
		if cfg.MD5 != rec.MD5 {
			changed = append(changed, rec.Key)
		}
	}
	return changed, nil
}

// Poll blocks until one of the listened configs changes, the timeout
// elapses, or ctx is cancelled. It returns the changed triples (empty
// slice on timeout, nil error on cancellation too — the transport just
// gets nothing to write).
func (p *Poller) Poll(ctx context.Context, records []ListenRecord, timeout time.Duration) ([]types.ConfigKey, error) {
	changed, err := p.compare(ctx, records)
	if err != nil {
		return nil, err
	}
	if len(changed) > 0 {
		return changed, nil
	}

	keys := make([]types.ConfigKey, len(records))
	for i, rec := range records {
		keys[i] = rec.Key
	}
	signal, cancel := p.broker.Subscribe(keys)
	defer cancel()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(compareInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case <-deadline.C:
			return nil, nil
		case <-signal:
		case <-ticker.C:
		}

		changed, err := p.compare(ctx, records)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil
			}
			return nil, err
		}
		if len(changed) > 0 {
			return changed, nil
		}
	}
}
