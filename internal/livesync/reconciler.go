package livesync

import (
	"sync"
)

// Reconciler is the single merge point for poll snapshots and change-feed
// events. It owns the authoritative collection: a set keyed by ID with
// insertion order preserved for stable tie-breaking downstream.
//
// An update whose UpdatedAt is not strictly newer than the held value for
// the same ID is discarded, regardless of arrival order. This is the only
// mechanism preventing a slow in-flight poll response from clobbering a
// newer push event.
type Reconciler struct {
	mu     sync.Mutex
	items  map[string]Item
	order  []string
	closed bool
}

// NewReconciler creates an empty reconciler
func NewReconciler() *Reconciler {
	return &Reconciler{
		items: make(map[string]Item),
	}
}

// ApplyFullSnapshot replaces the collection wholesale. Items absent from the
// snapshot are removed (deletes arrive implicitly). Duplicate IDs within a
// snapshot collapse to one entry, keeping the first payload unless a later
// duplicate carries a strictly newer UpdatedAt. A held item that is newer
// than its snapshot counterpart keeps its local value but stays subject to
// snapshot membership.
func (r *Reconciler) ApplyFullSnapshot(items []Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	next := make(map[string]Item, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if held, ok := next[item.ID]; ok {
			// duplicate within snapshot
			if item.UpdatedAt.After(held.UpdatedAt) {
				next[item.ID] = item
			}
			continue
		}
		if held, ok := r.items[item.ID]; ok && held.UpdatedAt.After(item.UpdatedAt) {
			item = held
		}
		next[item.ID] = item
		order = append(order, item.ID)
	}

	r.items = next
	r.order = order
}

// ApplyEvent applies a single change-feed event. Insert and update upsert by
// ID, discarding values that are not strictly newer than the held one;
// delete removes by ID.
func (r *Reconciler) ApplyEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	switch ev.Kind {
	case EventInsert, EventUpdate:
		if ev.Item.ID == "" {
			return
		}
		if held, ok := r.items[ev.Item.ID]; ok {
			if !ev.Item.UpdatedAt.After(held.UpdatedAt) {
				return
			}
			r.items[ev.Item.ID] = ev.Item
			return
		}
		r.items[ev.Item.ID] = ev.Item
		r.order = append(r.order, ev.Item.ID)
	case EventDelete:
		if _, ok := r.items[ev.Item.ID]; !ok {
			return
		}
		delete(r.items, ev.Item.ID)
		for i, id := range r.order {
			if id == ev.Item.ID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
}

// Items returns a copy of the collection in insertion order
func (r *Reconciler) Items() []Item {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := make([]Item, 0, len(r.order))
	for _, id := range r.order {
		items = append(items, r.items[id])
	}
	return items
}

// Len returns the collection size
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Get returns an item by ID
func (r *Reconciler) Get(id string) (Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	return item, ok
}

// Close renders all further mutations silent no-ops. A poll response or
// feed event arriving after the owning session is stopped must never be
// applied.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// Closed reports whether the reconciler has been closed
func (r *Reconciler) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
