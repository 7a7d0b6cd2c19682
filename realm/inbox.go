package realm

import (
	"sync"

	"github.com/wippyai/jsbridge/handle"
)

// inbox queues work for the owning goroutine. It is the only part of a
// realm that other goroutines touch.
type inbox struct {
	collected []handle.ID
	tasks     []func(*Realm)
	mu        sync.Mutex
	closed    bool
}

// collect records a collected wrapper. It runs on the cleanup goroutine.
func (b *inbox) collect(id handle.ID) {
	b.mu.Lock()
	if !b.closed {
		b.collected = append(b.collected, id)
	}
	b.mu.Unlock()
}

func (b *inbox) post(fn func(*Realm)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.tasks = append(b.tasks, fn)
	return true
}

func (b *inbox) take() ([]handle.ID, []func(*Realm)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids, tasks := b.collected, b.tasks
	b.collected, b.tasks = nil, nil
	return ids, tasks
}

// close rejects further work and returns what was still queued.
func (b *inbox) close() ([]handle.ID, []func(*Realm)) {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return b.take()
}
