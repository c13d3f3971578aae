package hxnav

import (
	"fmt"
	"sync"

	"github.com/pthm/hxnav/lib/encoding"
)

// State is the navigation state persisted with every history entry.
type State struct {
	Content string `msgpack:"content" json:"content"`
}

// Entry is one history entry: its state and the visible layout URL.
type Entry struct {
	State *State `msgpack:"state" json:"state"`
	URL   string `msgpack:"url" json:"url"`
}

// History abstracts the browser session history. Implementations must not
// call back into the Engine.
type History interface {
	Push(e Entry)
	Replace(e Entry)

	// Back and Forward move the cursor and return the entry now current.
	// They report false at either end.
	Back() (Entry, bool)
	Forward() (Entry, bool)

	Current() (Entry, bool)
}

// MemoryHistory is an in-memory History with browser semantics: a push
// discards every entry after the cursor.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []Entry
	index   int
}

// NewMemoryHistory creates an empty history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{index: -1}
}

func (h *MemoryHistory) Push(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.index+1], e)
	h.index = len(h.entries) - 1
}

func (h *MemoryHistory) Replace(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index < 0 {
		h.entries = []Entry{e}
		h.index = 0
		return
	}
	h.entries[h.index] = e
}

func (h *MemoryHistory) Back() (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index <= 0 {
		return Entry{}, false
	}
	h.index--
	return h.entries[h.index], true
}

func (h *MemoryHistory) Forward() (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index+1 >= len(h.entries) {
		return Entry{}, false
	}
	h.index++
	return h.entries[h.index], true
}

func (h *MemoryHistory) Current() (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index < 0 {
		return Entry{}, false
	}
	return h.entries[h.index], true
}

// Len returns the number of entries.
func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Entries returns a copy of all entries and the cursor position.
func (h *MemoryHistory) Entries() ([]Entry, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out, h.index
}

type historySnapshot struct {
	Entries []Entry `msgpack:"entries"`
	Index   int     `msgpack:"index"`
}

// Snapshot seals the history so a later session can resume it.
func (h *MemoryHistory) Snapshot(codec *encoding.Codec) (string, error) {
	entries, index := h.Entries()
	sealed, err := codec.Seal(historySnapshot{Entries: entries, Index: index}, false)
	if err != nil {
		return "", fmt.Errorf("hxnav: snapshot history: %w", err)
	}
	return sealed, nil
}

// RestoreHistory opens a sealed snapshot.
func RestoreHistory(codec *encoding.Codec, sealed string) (*MemoryHistory, error) {
	var snap historySnapshot
	if err := codec.Open(sealed, false, &snap); err != nil {
		return nil, fmt.Errorf("hxnav: restore history: %w", err)
	}
	if snap.Index < -1 || snap.Index >= len(snap.Entries) {
		return nil, fmt.Errorf("hxnav: restore history: cursor %d out of range: %w",
			snap.Index, encoding.ErrInvalidFormat)
	}
	return &MemoryHistory{entries: snap.Entries, index: snap.Index}, nil
}
