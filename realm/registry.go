package realm

import (
	"sync"

	"github.com/google/uuid"
)

// Registry is a process-scoped set of live realms. It is safe for
// concurrent use and lets background goroutines test whether a realm still
// exists, pin it, and hand work to its owner.
type Registry struct {
	realms map[uuid.UUID]*entry
	mu     sync.Mutex
}

type entry struct {
	realm  *Realm
	refs   int
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{realms: make(map[uuid.UUID]*entry)}
}

// Register adds r. Realms created with Options.Registry register
// themselves.
func (g *Registry) Register(r *Realm) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.realms[r.id] = &entry{realm: r}
}

// unregister marks the realm closed. The entry is dropped once no
// acquired references remain.
func (g *Registry) unregister(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.realms[id]
	if !ok {
		return
	}
	e.closed = true
	if e.refs == 0 {
		delete(g.realms, id)
	}
}

// Alive reports whether the realm exists and has not been closed.
func (g *Registry) Alive(id uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.realms[id]
	return ok && !e.closed
}

// Acquire pins a live realm. The entry stays in the registry until the
// returned release runs, even if the realm closes meanwhile; release is
// idempotent. Only Post and ID may be called on the realm from the
// acquiring goroutine.
func (g *Registry) Acquire(id uuid.UUID) (*Realm, func(), bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.realms[id]
	if !ok || e.closed {
		return nil, func() {}, false
	}
	e.refs++
	var once sync.Once
	release := func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			e.refs--
			if e.refs == 0 && e.closed {
				delete(g.realms, id)
			}
		})
	}
	return e.realm, release, true
}

// Post queues fn to run on the realm's owner during its next Update. It
// reports false when the realm is gone.
func (g *Registry) Post(id uuid.UUID, fn func(*Realm)) bool {
	g.mu.Lock()
	e, ok := g.realms[id]
	alive := ok && !e.closed
	g.mu.Unlock()
	if !alive {
		return false
	}
	return e.realm.Post(fn)
}

// Len returns the number of registry entries, including closed realms
// that are still pinned.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.realms)
}
