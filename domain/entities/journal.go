package entities

import (
	"errors"
	"time"
)

// JournalEntry is a free-text note on the dashboard, either typed or
// transcribed from a voice note.
type JournalEntry struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	Text      string    `json:"text" bson:"text"`
	Voice     bool      `json:"voice" bson:"voice"` // true when transcribed from audio
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// NewJournalEntry creates a typed journal entry.
func NewJournalEntry(text string) *JournalEntry {
	return &JournalEntry{
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// Validate validates the journal entry data.
func (j *JournalEntry) Validate() error {
	if j.Text == "" {
		return errors.New("text is required")
	}
	return nil
}
