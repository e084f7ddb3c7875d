package eventbus

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

// AsyncEventBus runs subscriber callbacks on a bounded worker pool so that
// publishers never block on slow handlers.
type AsyncEventBus struct {
	bus       evbus.Bus
	workerNum int
	workChan  chan asyncEvent
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	pending   sync.WaitGroup
}

type asyncEvent struct {
	topic string
	args  []interface{}
}

// NewAsyncEventBus creates an async bus with the given worker count.
func NewAsyncEventBus(workerNum int) *AsyncEventBus {
	if workerNum <= 0 {
		workerNum = 4
	}
	return &AsyncEventBus{
		bus:       evbus.New(),
		workerNum: workerNum,
		workChan:  make(chan asyncEvent, 256),
		stopChan:  make(chan struct{}),
	}
}

// Start launches the worker pool.
func (aeb *AsyncEventBus) Start() {
	for i := 0; i < aeb.workerNum; i++ {
		aeb.wg.Add(1)
		go aeb.worker()
	}
}

// Stop drains the workers and waits for them to exit.
func (aeb *AsyncEventBus) Stop() {
	aeb.stopOnce.Do(func() {
		close(aeb.stopChan)
	})
	aeb.wg.Wait()
}

func (aeb *AsyncEventBus) worker() {
	defer aeb.wg.Done()

	for {
		select {
		case <-aeb.stopChan:
			return
		case event := <-aeb.workChan:
			func() {
				defer aeb.pending.Done()
				defer func() {
					// A panicking subscriber must not take the worker down.
					_ = recover()
				}()
				aeb.bus.Publish(event.topic, event.args...)
			}()
		}
	}
}

// Publish dispatches the event synchronously on the caller's goroutine.
func (aeb *AsyncEventBus) Publish(topic string, args ...interface{}) {
	aeb.bus.Publish(topic, args...)
}

// PublishAsync queues the event for the worker pool; events are dropped when
// the queue is full rather than blocking the publisher.
func (aeb *AsyncEventBus) PublishAsync(topic string, args ...interface{}) {
	aeb.pending.Add(1)
	select {
	case aeb.workChan <- asyncEvent{topic: topic, args: args}:
	default:
		aeb.pending.Done()
	}
}

// Subscribe registers a handler for the topic.
func (aeb *AsyncEventBus) Subscribe(topic string, fn interface{}) error {
	return aeb.bus.Subscribe(topic, fn)
}

// Unsubscribe removes a previously registered handler.
func (aeb *AsyncEventBus) Unsubscribe(topic string, handler interface{}) error {
	return aeb.bus.Unsubscribe(topic, handler)
}

// HasCallback reports whether the topic has any subscriber.
func (aeb *AsyncEventBus) HasCallback(topic string) bool {
	return aeb.bus.HasCallback(topic)
}

// WaitAsync blocks until all queued events have been handled.
func (aeb *AsyncEventBus) WaitAsync() {
	aeb.pending.Wait()
}
