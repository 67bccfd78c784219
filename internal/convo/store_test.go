package convo

import (
	"errors"
	"testing"
)

func TestEnsure_CreatesOnce(t *testing.T) {
	s := NewStore()

	info, created := s.Ensure(1, "Ann")
	if !created {
		t.Fatal("expected first Ensure to create the record")
	}
	if info.OwnerLabel != "Ann" {
		t.Fatalf("unexpected owner label: %q", info.OwnerLabel)
	}
	if info.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}

	again, created := s.Ensure(1, "Bob")
	if created {
		t.Fatal("expected second Ensure to be idempotent")
	}
	if again.OwnerLabel != "Ann" {
		t.Fatalf("owner label overwritten on existing record: %q", again.OwnerLabel)
	}
	if !again.CreatedAt.Equal(info.CreatedAt) {
		t.Fatal("created_at changed on existing record")
	}
}

func TestAppend_UnknownConversation(t *testing.T) {
	s := NewStore()
	err := s.Append(42, Turn{Role: RoleUser, Content: "hi"})
	if !errors.Is(err, ErrUnknownConversation) {
		t.Fatalf("expected ErrUnknownConversation, got %v", err)
	}
}

func TestAppendAndHistory_Order(t *testing.T) {
	s := NewStore()
	s.Ensure(1, "Ann")
	turns := []Turn{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "b"},
		{Role: RoleUser, Content: "c"},
	}
	for _, turn := range turns {
		if err := s.Append(1, turn); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	history, err := s.History(1)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != len(turns) {
		t.Fatalf("expected %d turns, got %d", len(turns), len(history))
	}
	for i := range turns {
		if history[i] != turns[i] {
			t.Fatalf("turn %d mismatch: got %+v want %+v", i, history[i], turns[i])
		}
	}
}

func TestHistory_ReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Ensure(1, "Ann")
	s.Append(1, Turn{Role: RoleUser, Content: "original"})

	snapshot, err := s.History(1)
	if err != nil {
		t.Fatal(err)
	}
	snapshot[0].Content = "mutated"

	fresh, _ := s.History(1)
	if fresh[0].Content != "original" {
		t.Fatalf("snapshot mutation leaked into store: %q", fresh[0].Content)
	}
}

func TestRemoveLast(t *testing.T) {
	s := NewStore()

	if err := s.RemoveLast(1); !errors.Is(err, ErrUnknownConversation) {
		t.Fatalf("expected ErrUnknownConversation, got %v", err)
	}

	s.Ensure(1, "Ann")
	if err := s.RemoveLast(1); !errors.Is(err, ErrEmptyHistory) {
		t.Fatalf("expected ErrEmptyHistory, got %v", err)
	}

	s.Append(1, Turn{Role: RoleUser, Content: "a"})
	s.Append(1, Turn{Role: RoleUser, Content: "b"})
	if err := s.RemoveLast(1); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	history, _ := s.History(1)
	if len(history) != 1 || history[0].Content != "a" {
		t.Fatalf("unexpected history after remove: %+v", history)
	}
}

func TestClear(t *testing.T) {
	s := NewStore()
	s.Ensure(1, "Ann")
	s.Append(1, Turn{Role: RoleUser, Content: "hi"})

	if existed := s.Clear(1); !existed {
		t.Fatal("expected Clear to report an existing record")
	}
	if _, err := s.History(1); !errors.Is(err, ErrUnknownConversation) {
		t.Fatalf("expected record gone, got %v", err)
	}

	// Clearing again is a no-op, not an error.
	if existed := s.Clear(1); existed {
		t.Fatal("expected Clear on missing record to report nothing existed")
	}
}

func TestCount(t *testing.T) {
	s := NewStore()
	if s.Count() != 0 {
		t.Fatalf("expected empty store, got %d", s.Count())
	}
	s.Ensure(1, "Ann")
	s.Ensure(2, "Bob")
	s.Ensure(1, "Ann")
	if s.Count() != 2 {
		t.Fatalf("expected 2 conversations, got %d", s.Count())
	}
	s.Clear(1)
	if s.Count() != 1 {
		t.Fatalf("expected 1 conversation after clear, got %d", s.Count())
	}
}
