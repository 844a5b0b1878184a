package session

import (
	"sort"
	"testing"
)

func TestInMemoryStore_GetSet(t *testing.T) {
	store := NewInMemoryStore()

	if _, ok := store.Get("s1"); ok {
		t.Error("expected not found for empty store")
	}

	s := newTestSession(t, "s1")
	store.Set(s)

	got, ok := store.Get("s1")
	if !ok || got != s {
		t.Errorf("Get: ok=%v, got %p want %p", ok, got, s)
	}
}

func TestInMemoryStore_Set_replaces(t *testing.T) {
	store := NewInMemoryStore()
	s1 := newTestSession(t, "s1")
	s2 := newTestSession(t, "s1")
	store.Set(s1)
	store.Set(s2)

	got, ok := store.Get("s1")
	if !ok || got != s2 {
		t.Errorf("Set should replace: got %p want %p", got, s2)
	}
}

func TestInMemoryStore_DeleteAndList(t *testing.T) {
	store := NewInMemoryStore()
	for _, id := range []ID{"a", "b", "c"} {
		store.Set(newTestSession(t, id))
	}
	store.Delete("b")
	store.Delete("missing")

	ids := store.ListIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "c" {
		t.Errorf("ListIDs: got %v", ids)
	}
}
