package client

import "sync"

// StoreAction tags the commands that may mutate a record store.
type StoreAction string

const (
	ActionAdd             StoreAction = "ADD"
	ActionUpdate          StoreAction = "UPDATE"
	ActionRemove          StoreAction = "REMOVE"
	ActionSetItems        StoreAction = "SET_ITEMS"
	ActionSetItemsLoading StoreAction = "SET_ITEMS_LOADING"
	ActionStoreSetLoading StoreAction = "SET_LOADING"
	ActionApprove         StoreAction = "APPROVE"
	ActionReject          StoreAction = "REJECT"
	ActionShowModal       StoreAction = "SHOW_MODAL"
	ActionHideModal       StoreAction = "HIDE_MODAL"
	ActionSetSelected     StoreAction = "SET_SELECTED"
)

// StoreState is a point-in-time snapshot of a record store.
type StoreState[T Record] struct {
	Items        []T
	Loading      bool
	Err          error
	Selected     *T
	ModalVisible bool
}

// Store caches one resource's records. All mutation goes through the tagged
// action methods; no two items ever share an id after a completed action.
type Store[T Record] struct {
	mu      sync.RWMutex
	state   StoreState[T]
	nextSub int
	subs    map[int]func(StoreAction, StoreState[T])
}

// NewStore builds an empty record store.
func NewStore[T Record]() *Store[T] {
	return &Store[T]{subs: make(map[int]func(StoreAction, StoreState[T]))}
}

// Add inserts an item. An existing item with the same id is replaced.
func (s *Store[T]) Add(item T) {
	s.dispatch(ActionAdd, func(state *StoreState[T]) {
		for i, existing := range state.Items {
			if existing.RecordID() == item.RecordID() {
				state.Items[i] = item
				return
			}
		}
		state.Items = append(state.Items, item)
	})
}

// Update replaces the item with a matching id. Unknown ids are ignored.
func (s *Store[T]) Update(item T) {
	s.dispatch(ActionUpdate, func(state *StoreState[T]) {
		for i, existing := range state.Items {
			if existing.RecordID() == item.RecordID() {
				state.Items[i] = item
				return
			}
		}
	})
}

// Remove drops the item with the given id.
func (s *Store[T]) Remove(id string) {
	s.dispatch(ActionRemove, func(state *StoreState[T]) {
		state.Items = removeByID(state.Items, id)
		if state.Selected != nil && (*state.Selected).RecordID() == id {
			state.Selected = nil
		}
	})
}

// SetItems replaces the whole cache, deduplicating by id (last wins).
func (s *Store[T]) SetItems(items []T) {
	s.dispatch(ActionSetItems, func(state *StoreState[T]) {
		state.Items = dedupeByID(items)
		state.Loading = false
		state.Err = nil
	})
}

// SetItemsLoading records a completed fetch together with its error, if any.
func (s *Store[T]) SetItemsLoading(items []T, err error) {
	s.dispatch(ActionSetItemsLoading, func(state *StoreState[T]) {
		if err == nil {
			state.Items = dedupeByID(items)
		}
		state.Err = err
		state.Loading = false
	})
}

// SetLoading flags an in-flight fetch.
func (s *Store[T]) SetLoading(loading bool) {
	s.dispatch(ActionStoreSetLoading, func(state *StoreState[T]) {
		state.Loading = loading
	})
}

// Approve removes a moderated item from the pending view.
func (s *Store[T]) Approve(id string) {
	s.dispatch(ActionApprove, func(state *StoreState[T]) {
		state.Items = removeByID(state.Items, id)
	})
}

// Reject removes a moderated item from the pending view.
func (s *Store[T]) Reject(id string) {
	s.dispatch(ActionReject, func(state *StoreState[T]) {
		state.Items = removeByID(state.Items, id)
	})
}

// ShowModal opens the detail modal for the selected record.
func (s *Store[T]) ShowModal() {
	s.dispatch(ActionShowModal, func(state *StoreState[T]) {
		state.ModalVisible = true
	})
}

// HideModal closes the detail modal.
func (s *Store[T]) HideModal() {
	s.dispatch(ActionHideModal, func(state *StoreState[T]) {
		state.ModalVisible = false
	})
}

// SetSelected stores the record the modal operates on.
func (s *Store[T]) SetSelected(item *T) {
	s.dispatch(ActionSetSelected, func(state *StoreState[T]) {
		state.Selected = item
	})
}

// State returns a snapshot of the store.
func (s *Store[T]) State() StoreState[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Items returns a copy of the cached records.
func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]T, len(s.state.Items))
	copy(items, s.state.Items)
	return items
}

// Subscribe registers a callback invoked after every action. The returned
// function removes the subscription.
func (s *Store[T]) Subscribe(fn func(StoreAction, StoreState[T])) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store[T]) dispatch(action StoreAction, mutate func(*StoreState[T])) {
	s.mu.Lock()
	mutate(&s.state)
	snapshot := s.snapshotLocked()
	subs := make([]func(StoreAction, StoreState[T]), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(action, snapshot)
	}
}

func (s *Store[T]) snapshotLocked() StoreState[T] {
	state := s.state
	items := make([]T, len(state.Items))
	copy(items, state.Items)
	state.Items = items
	if state.Selected != nil {
		sel := *state.Selected
		state.Selected = &sel
	}
	return state
}

func removeByID[T Record](items []T, id string) []T {
	out := items[:0]
	for _, item := range items {
		if item.RecordID() != id {
			out = append(out, item)
		}
	}
	return out
}

func dedupeByID[T Record](items []T) []T {
	seen := make(map[string]int, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		if idx, ok := seen[item.RecordID()]; ok {
			out[idx] = item
			continue
		}
		seen[item.RecordID()] = len(out)
		out = append(out, item)
	}
	return out
}
