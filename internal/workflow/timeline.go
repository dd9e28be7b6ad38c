package workflow

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type EntryKind string

const (
	KindSystem EntryKind = "system"
	KindAgent  EntryKind = "agent"
	KindUser   EntryKind = "user"
	KindError  EntryKind = "error"
)

type Entry struct {
	ID        string    `json:"id"`
	Kind      EntryKind `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Timeline is append-only. Entries are never edited or removed once added.
type Timeline struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

func NewTimeline() *Timeline {
	return &Timeline{now: time.Now}
}

func (t *Timeline) Append(kind EntryKind, content string) Entry {
	e := Entry{
		ID:        uuid.NewString(),
		Kind:      kind,
		Content:   content,
		CreatedAt: t.now(),
	}

	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.mu.Unlock()
	return e
}

func (t *Timeline) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Entry{}, t.entries...)
}

func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
