package notify

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	updates "github.com/goliatone/go-updates"
	"github.com/goliatone/go-updates/pkg/transition"
	"github.com/google/uuid"
)

const defaultBuffer = 8

// Notifier owns the single mutable cell the driver reads through, and
// republishes every produced state to subscribers in emission order. The cell
// is updated synchronously for each produced state, before the state is
// republished and before the driver resumes, which is what makes the driver's
// id-based cancellation check sound.
type Notifier[T any] struct {
	mu      sync.RWMutex
	current updates.Update[T]
	subs    map[uuid.UUID]*Subscription[T]
	closed  bool

	emitter *transition.Emitter
	buffer  int
	runOpts []updates.RunOption[T]
}

// Option configures a Notifier.
type Option[T any] func(*Notifier[T])

// WithInitial seeds the cell with a state other than NotLoaded.
func WithInitial[T any](state updates.Update[T]) Option[T] {
	return func(n *Notifier[T]) {
		if state != nil {
			n.current = state
		}
	}
}

// WithEmitter republishes lifecycle events through emitter in addition to
// subscriber channels.
func WithEmitter[T any](emitter *transition.Emitter) Option[T] {
	return func(n *Notifier[T]) {
		n.emitter = emitter
	}
}

// WithBuffer sets the channel buffer for new subscriptions.
func WithBuffer[T any](size int) Option[T] {
	return func(n *Notifier[T]) {
		if size > 0 {
			n.buffer = size
		}
	}
}

// WithRunOptions applies opts to every Execute call, before per-call options.
func WithRunOptions[T any](opts ...updates.RunOption[T]) Option[T] {
	return func(n *Notifier[T]) {
		n.runOpts = append(n.runOpts, opts...)
	}
}

// New constructs a Notifier whose cell starts at NotLoaded.
func New[T any](opts ...Option[T]) *Notifier[T] {
	n := &Notifier[T]{
		current: updates.NotLoaded[T]{},
		subs:    make(map[uuid.UUID]*Subscription[T]),
		buffer:  defaultBuffer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

// Current returns the latest accepted state.
func (n *Notifier[T]) Current() updates.Update[T] {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.current
}

// Subscription is one push channel of produced states. Cancel releases it;
// Dropped counts states discarded because the channel buffer was full.
type Subscription[T any] struct {
	ID uuid.UUID
	C  <-chan updates.Update[T]

	ch      chan updates.Update[T]
	once    sync.Once
	drop    atomic.Uint64
	release func(id uuid.UUID)
}

// Cancel removes the subscription and closes its channel.
func (s *Subscription[T]) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.release != nil {
			s.release(s.ID)
		}
		close(s.ch)
	})
}

// Dropped returns how many states were discarded due to a full buffer.
func (s *Subscription[T]) Dropped() uint64 {
	if s == nil {
		return 0
	}
	return s.drop.Load()
}

// Subscribe registers a push channel receiving every state produced through
// Execute, in order. On a closed notifier the returned subscription's channel
// is already closed.
func (n *Notifier[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		ID: uuid.New(),
		ch: make(chan updates.Update[T], n.buffer),
	}
	sub.C = sub.ch
	sub.release = n.unsubscribe

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	n.subs[sub.ID] = sub
	n.mu.Unlock()
	return sub
}

func (n *Notifier[T]) unsubscribe(id uuid.UUID) {
	n.mu.Lock()
	delete(n.subs, id)
	n.mu.Unlock()
}

// Execute runs one driver step with the accessor bound to this notifier's
// cell, committing and republishing each produced state as it appears. It
// returns the produced states in order.
func (n *Notifier[T]) Execute(ctx context.Context, producer updates.Producer[T], opts ...updates.RunOption[T]) []updates.Update[T] {
	n.mu.RLock()
	closed := n.closed
	n.mu.RUnlock()
	if closed {
		return nil
	}

	merged := slices.Clone(n.runOpts)
	merged = append(merged, opts...)

	var produced []updates.Update[T]
	for state := range updates.Run(ctx, producer, n.Current, merged...) {
		n.publish(ctx, state)
		produced = append(produced, state)
	}
	return produced
}

// publish commits state to the cell and fans it out. The cell write happens
// under the lock, so any concurrent Execute re-reading the cell observes it
// before this call returns.
func (n *Notifier[T]) publish(ctx context.Context, state updates.Update[T]) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.current = state
	// Sends stay inside the critical section so a concurrent Cancel or Close
	// cannot close a channel mid-fanout. They never block: a slow subscriber
	// drops states instead of stalling production.
	for _, sub := range n.subs {
		select {
		case sub.ch <- state:
		default:
			sub.drop.Add(1)
		}
	}
	n.mu.Unlock()

	if n.emitter.Enabled() {
		id, _ := updates.AttemptID[T](state)
		_ = n.emitter.Emit(ctx, transition.BuildProducedEvent(transition.EventInput{
			AttemptID: id,
			State:     updates.StateName[T](state),
		}))
	}
}

// Close tears down every subscription and freezes the cell. Further Execute
// calls produce nothing.
func (n *Notifier[T]) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	subs := make([]*Subscription[T], 0, len(n.subs))
	for _, sub := range n.subs {
		subs = append(subs, sub)
	}
	n.subs = make(map[uuid.UUID]*Subscription[T])
	n.mu.Unlock()

	for _, sub := range subs {
		sub.once.Do(func() { close(sub.ch) })
	}
}
