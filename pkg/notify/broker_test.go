package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nacoslite/nacoslite/pkg/types"
)

// TestBrokerNotifyWakesSubscriber tests the basic wake-up path
func TestBrokerNotifyWakesSubscriber(t *testing.T) {
	b := NewBroker()
	key := types.ConfigKey{DataID: "d", Group: "g", Tenant: "public"}

	ch, cancel := b.Subscribe([]types.ConfigKey{key})
	defer cancel()
	assert.Equal(t, 1, b.SubscriberCount(key))

	b.Notify(key)
	select {
	case <-ch:
	default:
		t.Fatal("expected a pending signal after Notify")
	}
}

// TestBrokerNotifyUnrelatedKey tests that signals do not leak across triples
func TestBrokerNotifyUnrelatedKey(t *testing.T) {
	b := NewBroker()
	key := types.ConfigKey{DataID: "d", Group: "g", Tenant: "public"}

	ch, cancel := b.Subscribe([]types.ConfigKey{key})
	defer cancel()

	b.Notify(types.ConfigKey{DataID: "other", Group: "g", Tenant: "public"})
	select {
	case <-ch:
		t.Fatal("unexpected signal for unrelated key")
	default:
	}
}

// TestBrokerNotifyDoesNotBlock tests the non-blocking send with a
// pending signal already buffered
func TestBrokerNotifyDoesNotBlock(t *testing.T) {
	b := NewBroker()
	key := types.ConfigKey{DataID: "d", Group: "g", Tenant: "public"}

	_, cancel := b.Subscribe([]types.ConfigKey{key})
	defer cancel()

	// Two notifies with nobody draining must both return.
	b.Notify(key)
	b.Notify(key)
}

// TestBrokerCancelRemovesSubscription tests cleanup on cancel
func TestBrokerCancelRemovesSubscription(t *testing.T) {
	b := NewBroker()
	key := types.ConfigKey{DataID: "d", Group: "g", Tenant: "public"}

	_, cancel := b.Subscribe([]types.ConfigKey{key})
	cancel()
	assert.Zero(t, b.SubscriberCount(key))

	// Cancel after the set is gone must not panic.
	cancel()
}
