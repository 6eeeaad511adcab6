package logsink

import (
	"strings"
	"sync"
)

// Memory keeps entries in memory, used by tests and the send-webhook CLI
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemory() *Memory {
	return &Memory{}
}

func (s *Memory) Append(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	return nil
}

// Entries returns a copy of all entries in append order
func (s *Memory) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Messages returns the messages logged at level
func (s *Memory) Messages(level Level) []string {
	var out []string
	for _, e := range s.Entries() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

// Contains reports whether any entry at level contains substr
func (s *Memory) Contains(level Level, substr string) bool {
	for _, msg := range s.Messages(level) {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}
