package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/km-arc/go-swift/framework/di"
)

// ListenerSource supplies compiled listener bindings and resolves them.
// *container.Container implements it.
type ListenerSource interface {
	ListenerBindings() []di.ListenerBinding
	Listener(b di.ListenerBinding) (func(event any) error, error)
}

// Subscriber is implemented by services that handle several events
// themselves. Classes implementing it are tagged di.TagSubscriber by
// autoconfiguration.
//
//	// Symfony: EventSubscriberInterface::getSubscribedEvents()
type Subscriber interface {
	SubscribedEvents() map[string]func(event any) error
}

// Stoppable events can halt propagation to lower-priority listeners.
type Stoppable interface {
	PropagationStopped() bool
}

// Event is an embeddable Stoppable implementation.
//
//	type UserRegistered struct {
//	    events.Event
//	    Email string
//	}
type Event struct {
	stopped bool
}

// StopPropagation prevents the remaining listeners from running.
func (e *Event) StopPropagation() { e.stopped = true }

// PropagationStopped reports whether StopPropagation was called.
func (e *Event) PropagationStopped() bool { return e.stopped }

// Dispatcher calls listeners in the order the graph recorded: descending
// priority, then discovery order. Subscribers run after the compiled
// listeners, in tag order. Listeners are resolved on first dispatch.
//
//	// Laravel: Event::dispatch(new UserRegistered($user))
//	err := dispatcher.Dispatch(ctx, "user.registered", &UserRegistered{Email: email})
type Dispatcher struct {
	source      ListenerSource
	subscribers []Subscriber
	logger      *zap.Logger

	once    sync.Once
	byEvent map[string][]di.ListenerBinding
}

// NewDispatcher creates a dispatcher over source.
//
//	di.Provide(events.NewDispatcher, di.Inject(2, di.WithTag(di.TagSubscriber)))
func NewDispatcher(source ListenerSource, logger *zap.Logger, subscribers []Subscriber) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{source: source, subscribers: subscribers, logger: logger}
}

// Listeners returns the bindings for name in call order.
func (d *Dispatcher) Listeners(name string) []di.ListenerBinding {
	d.index()
	return append([]di.ListenerBinding(nil), d.byEvent[name]...)
}

// HasListeners reports whether anything listens to name.
func (d *Dispatcher) HasListeners(name string) bool {
	d.index()
	if len(d.byEvent[name]) > 0 {
		return true
	}
	for _, sub := range d.subscribers {
		if _, ok := sub.SubscribedEvents()[name]; ok {
			return true
		}
	}
	return false
}

// Dispatch delivers event to every listener of name. The first listener
// error aborts the dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, event any) error {
	for _, b := range d.Listeners(name) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s, ok := event.(Stoppable); ok && s.PropagationStopped() {
			d.logger.Debug("event propagation stopped", zap.String("event", name), zap.String("before", b.ServiceID))
			return nil
		}
		fn, err := d.source.Listener(b)
		if err != nil {
			return fmt.Errorf("events: resolving listener %s::%s for %q: %w", b.ServiceID, b.Method, name, err)
		}
		if err := fn(event); err != nil {
			return fmt.Errorf("events: listener %s::%s for %q: %w", b.ServiceID, b.Method, name, err)
		}
	}
	for _, sub := range d.subscribers {
		fn, ok := sub.SubscribedEvents()[name]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if s, ok := event.(Stoppable); ok && s.PropagationStopped() {
			return nil
		}
		if err := fn(event); err != nil {
			return fmt.Errorf("events: subscriber %T for %q: %w", sub, name, err)
		}
	}
	return nil
}

func (d *Dispatcher) index() {
	d.once.Do(func() {
		d.byEvent = make(map[string][]di.ListenerBinding)
		for _, b := range d.source.ListenerBindings() {
			d.byEvent[b.Event] = append(d.byEvent[b.Event], b)
		}
	})
}
