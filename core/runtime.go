package orchestration

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/embodielabs/presence-core/core/events"
)

const conversationEventQueueCapacity = 32

// queuedEvent is one unit of work for the conversation loop: either a
// speech-model event to route or a marshaled closure from another goroutine.
type queuedEvent struct {
	event    events.Event
	run      func()
	queuedAt time.Time
}

// conversationRuntime serializes all state transitions onto a single loop.
// Public orchestrator methods enqueue; only the loop mutates state.
type conversationRuntime struct {
	queue   chan queuedEvent
	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	endOnce   sync.Once

	started atomic.Bool
}

func newConversationRuntime() *conversationRuntime {
	return &conversationRuntime{
		queue:   make(chan queuedEvent, conversationEventQueueCapacity),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (runtime *conversationRuntime) start(process func(queuedEvent)) (started bool) {
	if runtime == nil || runtime.isClosed() {
		return false
	}

	runtime.startOnce.Do(func() {
		if runtime.isClosed() {
			return
		}

		started = true
		runtime.started.Store(true)
		go func() {
			defer close(runtime.done)

			for {
				select {
				case <-runtime.closeCh:
					return
				case item := <-runtime.queue:
					if runtime.isClosed() {
						return
					}
					process(item)
				}
			}
		}()
	})

	return started
}

func (runtime *conversationRuntime) end() {
	if runtime == nil {
		return
	}

	runtime.endOnce.Do(func() {
		close(runtime.closeCh)
	})
}

func (runtime *conversationRuntime) awaitCompletion() {
	if runtime == nil {
		return
	}

	if runtime.started.Load() {
		<-runtime.done
	}
}

func (runtime *conversationRuntime) enqueue(item queuedEvent) bool {
	if runtime == nil || runtime.isClosed() {
		return false
	}

	item.queuedAt = time.Now()
	select {
	case <-runtime.closeCh:
		return false
	case runtime.queue <- item:
		return true
	}
}

func (runtime *conversationRuntime) isClosed() bool {
	if runtime == nil {
		return false
	}

	select {
	case <-runtime.closeCh:
		return true
	default:
		return false
	}
}
