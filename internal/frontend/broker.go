package frontend

import "sync"

// subscriberBufferSize is the channel buffer for each event subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// EventBroker fans memory events out to per-operator subscribers. It is the
// only part of the frontend that is safe for concurrent use, so the debug API
// can stream events while the training loop publishes them.
//
// Closed topics are kept as markers so that subscribing to an unregistered
// operator returns a closed channel instead of blocking forever.
type EventBroker struct {
	mu     sync.Mutex
	topics map[string]*eventTopic
	closed bool
}

type eventTopic struct {
	subs   map[int]chan string
	nextID int
	closed bool
}

// NewEventBroker creates an empty broker.
func NewEventBroker() *EventBroker {
	return &EventBroker{topics: make(map[string]*eventTopic)}
}

// Subscribe returns a channel receiving events of the operator and an
// unsubscribe function.
func (b *EventBroker) Subscribe(op string) (<-chan string, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[op]
	if !ok {
		t = &eventTopic{subs: make(map[int]chan string), closed: b.closed}
		b.topics[op] = t
	}

	ch := make(chan string, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends an event line to every subscriber of the operator.
func (b *EventBroker) Publish(op, line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[op]
	if !ok || t.closed {
		return
	}
	for _, ch := range t.subs {
		select {
		case ch <- line:
		default:
			// Drop for slow subscribers; the training loop never blocks here.
		}
	}
}

// Reopen clears the closed marker of an operator that is registered again.
func (b *EventBroker) Reopen(op string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.topics[op]; ok && t.closed && !b.closed {
		delete(b.topics, op)
	}
}

// Close ends the operator's stream.
func (b *EventBroker) Close(op string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[op]
	if !ok {
		b.topics[op] = &eventTopic{subs: make(map[int]chan string), closed: true}
		return
	}
	t.close()
}

// CloseAll ends every stream. Later subscriptions get closed channels.
func (b *EventBroker) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for _, t := range b.topics {
		t.close()
	}
}

func (t *eventTopic) close() {
	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
