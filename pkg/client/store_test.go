package client

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pub(id, title string) Publication {
	return Publication{ID: id, Title: title, Status: StatusPending}
}

func storeIDs[T Record](items []T) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.RecordID()
	}
	return ids
}

func TestStoreAddReplacesSameID(t *testing.T) {
	s := NewStore[Publication]()
	s.Add(pub("a", "first"))
	s.Add(pub("b", "second"))
	s.Add(pub("a", "updated"))

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, []string{"a", "b"}, storeIDs(items))
	assert.Equal(t, "updated", items[0].Title)
}

func TestStoreUpdateIgnoresUnknownID(t *testing.T) {
	s := NewStore[Publication]()
	s.Add(pub("a", "first"))
	s.Update(pub("ghost", "nope"))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].ID)
}

func TestStoreRemoveClearsSelected(t *testing.T) {
	s := NewStore[Publication]()
	item := pub("a", "first")
	s.Add(item)
	s.SetSelected(&item)
	require.NotNil(t, s.State().Selected)

	s.Remove("a")
	state := s.State()
	assert.Empty(t, state.Items)
	assert.Nil(t, state.Selected)
}

func TestStoreSetItemsDeduplicates(t *testing.T) {
	s := NewStore[Publication]()
	s.SetLoading(true)
	s.SetItems([]Publication{pub("a", "one"), pub("b", "two"), pub("a", "one again")})

	state := s.State()
	assert.False(t, state.Loading)
	assert.NoError(t, state.Err)
	require.Len(t, state.Items, 2)
	assert.Equal(t, []string{"a", "b"}, storeIDs(state.Items))
	assert.Equal(t, "one again", state.Items[0].Title)
}

func TestStoreSetItemsLoadingKeepsItemsOnError(t *testing.T) {
	s := NewStore[Publication]()
	s.SetItems([]Publication{pub("a", "one")})

	fetchErr := errors.New("network down")
	s.SetLoading(true)
	s.SetItemsLoading(nil, fetchErr)

	state := s.State()
	assert.False(t, state.Loading)
	assert.Equal(t, fetchErr, state.Err)
	require.Len(t, state.Items, 1)
	assert.Equal(t, "a", state.Items[0].ID)
}

func TestStoreApproveRejectRemoveFromPendingView(t *testing.T) {
	s := NewStore[Publication]()
	s.SetItems([]Publication{pub("a", "one"), pub("b", "two"), pub("c", "three")})

	s.Approve("a")
	s.Reject("c")

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].ID)
}

func TestStoreModalActions(t *testing.T) {
	s := NewStore[Publication]()
	item := pub("a", "one")
	s.SetSelected(&item)
	s.ShowModal()

	state := s.State()
	assert.True(t, state.ModalVisible)
	require.NotNil(t, state.Selected)
	assert.Equal(t, "a", (*state.Selected).ID)

	s.HideModal()
	assert.False(t, s.State().ModalVisible)
}

func TestStoreSubscribeReceivesActions(t *testing.T) {
	s := NewStore[Publication]()
	var actions []StoreAction
	unsubscribe := s.Subscribe(func(action StoreAction, _ StoreState[Publication]) {
		actions = append(actions, action)
	})

	s.Add(pub("a", "one"))
	s.Approve("a")
	unsubscribe()
	s.Add(pub("b", "two"))

	assert.Equal(t, []StoreAction{ActionAdd, ActionApprove}, actions)
}

func TestStoreLoadingActionsAreDistinct(t *testing.T) {
	s := NewStore[Publication]()
	var actions []StoreAction
	unsubscribe := s.Subscribe(func(action StoreAction, _ StoreState[Publication]) {
		actions = append(actions, action)
	})
	defer unsubscribe()

	s.SetLoading(true)
	s.SetItemsLoading([]Publication{pub("a", "one")}, nil)

	assert.Equal(t, []StoreAction{ActionStoreSetLoading, ActionSetItemsLoading}, actions)
}

func TestStoreSnapshotIsIsolated(t *testing.T) {
	s := NewStore[Publication]()
	s.Add(pub("a", "one"))

	items := s.Items()
	items[0].Title = "mutated"

	assert.Equal(t, "one", s.Items()[0].Title)
}
