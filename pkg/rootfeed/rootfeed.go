// Package rootfeed publishes authenticated state root updates to whatever
// in-process subscribers want them, decoupling the state engine from its
// observers. The run command hands a Broker to the state engine but
// registers no subscriber, so nothing in this repository writes the
// merkle_tree table from these updates.
package rootfeed

import "sync"

// RootUpdate is published after every account update the state engine
// admits, carrying that update's slot and the resulting root; a slot with
// several admitted updates yields several RootUpdates.
type RootUpdate struct {
	Slot uint64
	Root [32]byte
}

// Subscriber is a channel that receives root updates.
type Subscriber chan RootUpdate

// Broker fans RootUpdate values out to every current subscriber. Publish is
// non-blocking: a subscriber with a full buffer misses the update rather
// than stalling the state engine's apply loop.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]bool
	updateCh    chan RootUpdate
	stopCh      chan struct{}
}

// NewBroker creates a new root feed broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		updateCh:    make(chan RootUpdate, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish announces a new committed root. Safe to call from the state
// engine's single writer goroutine; never blocks on a slow subscriber.
func (b *Broker) Publish(update RootUpdate) {
	select {
	case b.updateCh <- update:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case update := <-b.updateCh:
			b.broadcast(update)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(update RootUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- update:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
