// Package session keeps the in-memory chat transcript for one server
// session. Turns are append-only and never persisted.
package session

import (
	"sync"
	"time"
)

// Turn is one question/answer exchange with the snippets each store
// contributed.
type Turn struct {
	Question     string              `json:"question"`
	Answer       string              `json:"answer"`
	Mode         string              `json:"mode"`
	StoreResults map[string][]string `json:"store_results,omitempty"`
	AskedAt      time.Time           `json:"asked_at"`
}

// Transcript is a mutex-guarded, append-only list of turns.
type Transcript struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append records a turn, stamping AskedAt if unset.
func (t *Transcript) Append(turn Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if turn.AskedAt.IsZero() {
		turn.AskedAt = time.Now()
	}
	t.turns = append(t.turns, turn)
}

// Turns returns a copy of the recorded turns in order.
func (t *Transcript) Turns() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Reset discards all recorded turns.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = nil
}

// Len reports the number of recorded turns.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}
