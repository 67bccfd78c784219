package convo

import (
	"errors"
	"sync"
	"time"
)

// Role attributes a turn to one side of the conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single committed message in a conversation.
type Turn struct {
	Role    Role
	Content string
}

var (
	// ErrUnknownConversation is returned when no record exists for the id.
	ErrUnknownConversation = errors.New("unknown conversation")
	// ErrEmptyHistory is returned by RemoveLast when there is nothing to remove.
	ErrEmptyHistory = errors.New("empty history")
)

// Info is a read-only snapshot of a conversation's metadata.
type Info struct {
	OwnerLabel string
	CreatedAt  time.Time
	Turns      int
}

type record struct {
	history    []Turn
	ownerLabel string
	createdAt  time.Time
}

// Store holds per-conversation history in memory. Records live until an
// explicit Clear or process exit; nothing is persisted. The store lock
// covers map access only; callers that stage and commit turns must
// serialize per conversation themselves.
type Store struct {
	mu            sync.RWMutex
	conversations map[int64]*record
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		conversations: make(map[int64]*record),
	}
}

// Ensure returns the conversation's metadata, creating an empty record on
// first contact. Owner label and creation time are captured only on create;
// calling Ensure on an existing id changes nothing.
func (s *Store) Ensure(chatID int64, ownerLabel string) (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.conversations[chatID]; ok {
		return infoOf(rec), false
	}
	rec := &record{
		ownerLabel: ownerLabel,
		createdAt:  time.Now(),
	}
	s.conversations[chatID] = rec
	return infoOf(rec), true
}

// Append adds a turn to the conversation's history.
func (s *Store) Append(chatID int64, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.conversations[chatID]
	if !ok {
		return ErrUnknownConversation
	}
	rec.history = append(rec.history, turn)
	return nil
}

// RemoveLast removes the most recently appended turn. It exists solely for
// rolling back a provisional turn after a failed completion.
func (s *Store) RemoveLast(chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.conversations[chatID]
	if !ok {
		return ErrUnknownConversation
	}
	if len(rec.history) == 0 {
		return ErrEmptyHistory
	}
	rec.history = rec.history[:len(rec.history)-1]
	return nil
}

// Clear deletes the record and its history entirely. It reports whether a
// record actually existed; clearing an unknown conversation is not an error.
func (s *Store) Clear(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.conversations[chatID]
	delete(s.conversations, chatID)
	return existed
}

// History returns a copy of the conversation's full history in
// chronological order. Mutating the returned slice does not affect the store.
func (s *Store) History(chatID int64) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.conversations[chatID]
	if !ok {
		return nil, ErrUnknownConversation
	}
	out := make([]Turn, len(rec.history))
	copy(out, rec.history)
	return out, nil
}

// Info returns the conversation's metadata snapshot.
func (s *Store) Info(chatID int64) (Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.conversations[chatID]
	if !ok {
		return Info{}, ErrUnknownConversation
	}
	return infoOf(rec), nil
}

// Count returns the number of live conversations.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

func infoOf(rec *record) Info {
	return Info{
		OwnerLabel: rec.ownerLabel,
		CreatedAt:  rec.createdAt,
		Turns:      len(rec.history),
	}
}
