// Package notes keeps the notes the AI takes during a call.
package notes

import (
	"sync"
	"time"
)

// Category classifies a note.
type Category string

const (
	ActionItem    Category = "action_item"
	Decision      Category = "decision"
	Idea          Category = "idea"
	Reminder      Category = "reminder"
	ImportantInfo Category = "important_info"
)

// Categories lists every valid category.
var Categories = []Category{ActionItem, Decision, Idea, Reminder, ImportantInfo}

// ParseCategory maps s to a known category. Empty or unknown input becomes ImportantInfo.
func ParseCategory(s string) Category {
	for _, c := range Categories {
		if string(c) == s {
			return c
		}
	}
	return ImportantInfo
}

// Note is a single saved note.
type Note struct {
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
	Category  Category  `json:"category"`
}

// Log is an append-only list of notes for one guild. Every append hands the
// full list to the store.
type Log struct {
	guildID string
	store   Store
	onError func(error)

	mu    sync.RWMutex
	notes []Note
}

// NewLog creates a log seeded with existing notes. store and onError may be nil.
func NewLog(guildID string, existing []Note, store Store, onError func(error)) *Log {
	return &Log{
		guildID: guildID,
		store:   store,
		onError: onError,
		notes:   append([]Note(nil), existing...),
	}
}

// Append adds a note and persists the whole list. Persistence failures are
// reported to onError; the in-memory log keeps the note either way. It returns
// the new note count.
func (l *Log) Append(n Note) int {
	l.mu.Lock()
	l.notes = append(l.notes, n)
	count := len(l.notes)
	snapshot := append([]Note(nil), l.notes...)
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.SaveNotes(l.guildID, snapshot); err != nil && l.onError != nil {
			l.onError(err)
		}
	}
	return count
}

// Notes returns a copy of the current list.
func (l *Log) Notes() []Note {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Note(nil), l.notes...)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.notes)
}
