// Package bus fans out tip lifecycle events to in-process subscribers such as
// the event logger and the funds-transfer collaborator.
package bus

import (
	"sync"
)

const defaultBufferSize = 100

type MessageBus struct {
	eventSubscribers      map[uint64]chan Event
	nextEventSubscriberID uint64

	done      chan struct{}
	closeOnce sync.Once

	mu sync.RWMutex
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		eventSubscribers: make(map[uint64]chan Event),
		done:             make(chan struct{}),
	}
}

// Closed reports whether Close has been called.
func (mb *MessageBus) Closed() bool {
	select {
	case <-mb.done:
		return true
	default:
		return false
	}
}

func (mb *MessageBus) Close() {
	mb.closeOnce.Do(func() {
		close(mb.done)

		mb.mu.Lock()
		for id, ch := range mb.eventSubscribers {
			close(ch)
			delete(mb.eventSubscribers, id)
		}
		mb.mu.Unlock()
	})
}
