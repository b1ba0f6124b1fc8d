package notify

import (
	"sync"

	"github.com/nacoslite/nacoslite/pkg/types"
)

// Broker fans publish commits out to the listeners waiting on the
// changed triple. It is purely a wake-up signal: the poll loop always
// re-reads the store before reporting a change, so the database stays
// the source of truth.
type Broker struct {
	mu   sync.RWMutex
	subs map[types.ConfigKey]map[chan struct{}]struct{}
}

// NewBroker creates an empty broker
func NewBroker() *Broker {
	return &Broker{subs: make(map[types.ConfigKey]map[chan struct{}]struct{})}
}

// Subscribe registers interest in the given triples. The returned
// channel signals when any of them may have changed; cancel must be
// called on every exit path.
func (b *Broker) Subscribe(keys []types.ConfigKey) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	for _, key := range keys {
		set, ok := b.subs[key]
		if !ok {
			set = make(map[chan struct{}]struct{})
			b.subs[key] = set
		}
		set[ch] = struct{}{}
	}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		for _, key := range keys {
			if set, ok := b.subs[key]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(b.subs, key)
				}
			}
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Notify wakes every listener subscribed to the triple. The send is
// non-blocking; a listener that already has a pending signal needs no
// second one.
func (b *Broker) Notify(key types.ConfigKey) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// SubscriberCount returns the number of waiting listener channels for
// the triple
func (b *Broker) SubscriberCount(key types.ConfigKey) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[key])
}
