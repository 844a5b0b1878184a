package session

import (
	"context"
	"errors"
	"testing"

	"avatar-compositor/internal/chromakey"
)

func newTestSession(t *testing.T, id ID) *Session {
	t.Helper()
	s := New(id, Deps{Avatar: newFakeAvatar(), Scheduler: chromakey.NewManualScheduler(), Log: testLogger()})
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestInMemoryRepository_Add(t *testing.T) {
	repo := NewInMemoryRepository()
	s := newTestSession(t, "s1")

	t.Run("success", func(t *testing.T) {
		if err := repo.Add(s); err != nil {
			t.Fatalf("Add: %v", err)
		}
		got, ok := repo.Get("s1")
		if !ok || got != s {
			t.Errorf("Get: got %v, ok=%v", got, ok)
		}
	})

	t.Run("duplicate_id", func(t *testing.T) {
		err := repo.Add(newTestSession(t, "s1"))
		if !errors.Is(err, ErrDuplicateSession) {
			t.Errorf("expected ErrDuplicateSession, got %v", err)
		}
		got, _ := repo.Get("s1")
		if got != s {
			t.Error("duplicate add replaced the registered session")
		}
	})
}

func TestInMemoryRepository_Remove(t *testing.T) {
	repo := NewInMemoryRepository()
	s := newTestSession(t, "s1")
	_ = repo.Add(s)

	got, ok := repo.Remove("s1")
	if !ok || got != s {
		t.Fatalf("Remove: got %v, ok=%v", got, ok)
	}
	if _, ok := repo.Get("s1"); ok {
		t.Error("session still registered after Remove")
	}
	if _, ok := repo.Remove("s1"); ok {
		t.Error("second Remove should report not found")
	}
}

func TestInMemoryRepository_List_sorted(t *testing.T) {
	repo := NewInMemoryRepository()
	for _, id := range []ID{"c", "a", "b"} {
		if err := repo.Add(newTestSession(t, id)); err != nil {
			t.Fatal(err)
		}
	}

	list := repo.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(list))
	}
	for i, want := range []ID{"a", "b", "c"} {
		if list[i].ID() != want {
			t.Errorf("List[%d]: expected %s, got %s", i, want, list[i].ID())
		}
	}
}

func TestInMemoryRepository_ActiveCount(t *testing.T) {
	repo := NewInMemoryRepository()
	idle := newTestSession(t, "idle")
	live := newTestSession(t, "live")
	_ = repo.Add(idle)
	_ = repo.Add(live)

	if n := repo.ActiveCount(); n != 0 {
		t.Errorf("expected 0 active, got %d", n)
	}
	if err := live.Start(context.Background(), StartRequest{}); err != nil {
		t.Fatal(err)
	}
	if n := repo.ActiveCount(); n != 1 {
		t.Errorf("expected 1 active, got %d", n)
	}
}

// countingStore wraps InMemoryStore to verify the repository goes through Store.
type countingStore struct {
	*InMemoryStore
	sets, deletes int
}

func (c *countingStore) Set(s *Session) {
	c.sets++
	c.InMemoryStore.Set(s)
}

func (c *countingStore) Delete(id ID) {
	c.deletes++
	c.InMemoryStore.Delete(id)
}

func TestInMemoryRepository_WithStore(t *testing.T) {
	store := &countingStore{InMemoryStore: NewInMemoryStore()}
	repo := NewInMemoryRepositoryWithStore(store)

	_ = repo.Add(newTestSession(t, "s1"))
	_ = repo.Add(newTestSession(t, "s1"))
	repo.Remove("s1")

	if store.sets != 1 || store.deletes != 1 {
		t.Errorf("expected 1 set and 1 delete, got %d and %d", store.sets, store.deletes)
	}
}
