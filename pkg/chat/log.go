package chat

import "sync"

// Log is an append-only ordered message sequence. Insertion order is
// display order; there is no edit or delete.
type Log struct {
	mu       sync.RWMutex
	messages []Message
}

func NewLog() *Log {
	return &Log{}
}

// Append adds a message to the end of the log.
func (l *Log) Append(msg Message) {
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()
}

// Len returns the number of messages in the log.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Messages returns a copy of the log in insertion order.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Since returns a copy of the messages appended after the given index.
// Used by reconnecting clients to catch up without replaying everything.
func (l *Log) Since(index int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 {
		index = 0
	}
	if index >= len(l.messages) {
		return nil
	}
	out := make([]Message, len(l.messages)-index)
	copy(out, l.messages[index:])
	return out
}

// Group is a run of consecutive messages from the same author.
type Group struct {
	Author   Author
	Messages []Message
}

// GroupedByAuthor returns a read-only projection for display: consecutive
// messages from the same author are collapsed into one group, order
// preserved.
func (l *Log) GroupedByAuthor() []Group {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var groups []Group
	for _, msg := range l.messages {
		if n := len(groups); n > 0 && groups[n-1].Author == msg.Author {
			groups[n-1].Messages = append(groups[n-1].Messages, msg)
			continue
		}
		groups = append(groups, Group{Author: msg.Author, Messages: []Message{msg}})
	}
	return groups
}
