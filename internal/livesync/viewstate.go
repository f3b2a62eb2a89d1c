package livesync

import (
	"sort"
	"sync"
)

// SortOrder represents the sort direction over Item.Score
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Phase represents the load state of a view
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseErrored
)

// String returns the phase name
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Projection is the read-only surface handed to the rendering layer.
type Projection struct {
	Items     []Item
	Total     int
	IsLoading bool
	Phase     Phase
	Error     *ErrorKind
}

// ViewState derives the visible projection from the reconciler's collection:
// stable sort over Score, a grow-only window, and load/error phases.
//
// Stability contract: items with equal Score keep their relative order from
// the previous sort pass, so re-sorting an already-sorted collection is a
// no-op. Nil scores sort last in either direction, keeping insertion order
// among themselves. The window end never shrinks within a session; it is
// clamped to the collection length.
type ViewState struct {
	mu     sync.Mutex
	order  SortOrder
	sorted []Item
	end    int
	phase  Phase
	err    *ErrorKind
}

// NewViewState creates a view with the given sort order and initial window size
func NewViewState(order SortOrder, initialWindow int) *ViewState {
	if order != SortAsc {
		order = SortDesc
	}
	if initialWindow < 0 {
		initialWindow = 0
	}
	return &ViewState{
		order: order,
		end:   initialWindow,
		phase: PhaseIdle,
	}
}

// SetItems replaces the underlying collection. Previously known items keep
// their relative order from the last sort pass; new items append in the
// order given. The merged sequence is then stably re-sorted.
func (v *ViewState) SetItems(items []Item) {
	v.mu.Lock()
	defer v.mu.Unlock()

	incoming := make(map[string]Item, len(items))
	for _, item := range items {
		incoming[item.ID] = item
	}

	merged := make([]Item, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, prev := range v.sorted {
		if item, ok := incoming[prev.ID]; ok {
			merged = append(merged, item)
			seen[prev.ID] = true
		}
	}
	for _, item := range items {
		if !seen[item.ID] {
			merged = append(merged, item)
			seen[item.ID] = true
		}
	}

	v.sorted = merged
	v.resort()
}

// SetSortOrder changes the sort direction and re-sorts
func (v *ViewState) SetSortOrder(order SortOrder) {
	if order != SortAsc && order != SortDesc {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.order == order {
		return
	}
	v.order = order
	v.resort()
}

// SortOrder returns the current sort direction
func (v *ViewState) SortOrder() SortOrder {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.order
}

// resort stably sorts v.sorted in place. Caller holds v.mu.
func (v *ViewState) resort() {
	asc := v.order == SortAsc
	sort.SliceStable(v.sorted, func(i, j int) bool {
		a, b := v.sorted[i].Score, v.sorted[j].Score
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return false // nil scores always last
		case b == nil:
			return true
		case asc:
			return *a < *b
		default:
			return *a > *b
		}
	})
}

// GrowWindow increases the window end by n, clamped to the collection
// length. The end never decreases.
func (v *ViewState) GrowWindow(n int) {
	if n <= 0 {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	end := v.end + n
	if end > len(v.sorted) {
		end = len(v.sorted)
	}
	if end > v.end {
		v.end = end
	}
}

// WindowEnd returns the current window end index
func (v *ViewState) WindowEnd() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.end > len(v.sorted) {
		return len(v.sorted)
	}
	return v.end
}

// MarkLoading transitions to Loading, but only before the first successful
// load. Background refreshes never flicker the view back to Loading.
func (v *ViewState) MarkLoading() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.phase == PhaseIdle {
		v.phase = PhaseLoading
	}
}

// MarkLoaded records a successful load and clears any surfaced error
func (v *ViewState) MarkLoaded() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.phase = PhaseLoaded
	v.err = nil
}

// MarkError records an error. Fatal errors before the first successful load
// move the view to Errored; after that the previous data stays displayed
// and the error is surfaced once through the projection.
func (v *ViewState) MarkError(kind ErrorKind) {
	v.mu.Lock()
	defer v.mu.Unlock()
	k := kind
	v.err = &k
	if v.phase != PhaseLoaded {
		v.phase = PhaseErrored
	}
}

// View returns the current projection: the sorted, windowed items plus load
// state. The returned slice is a copy.
func (v *ViewState) View() Projection {
	v.mu.Lock()
	defer v.mu.Unlock()

	end := v.end
	if end > len(v.sorted) {
		end = len(v.sorted)
	}
	items := make([]Item, end)
	copy(items, v.sorted[:end])

	var errKind *ErrorKind
	if v.err != nil {
		k := *v.err
		errKind = &k
	}

	return Projection{
		Items:     items,
		Total:     len(v.sorted),
		IsLoading: v.phase == PhaseLoading,
		Phase:     v.phase,
		Error:     errKind,
	}
}
