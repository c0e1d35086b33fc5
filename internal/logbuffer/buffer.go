/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logbuffer provides an in-memory ring buffer for captured logs, so
// the control API can serve recent engine history without touching disk.
package logbuffer

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"
)

// Entry is a single captured log line.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Buffer is a thread-safe ring buffer for log entries.
type Buffer struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
	head     int
	count    int
}

// New creates a buffer with the specified capacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 5000
	}
	return &Buffer{entries: make([]Entry, capacity), capacity: capacity}
}

// Add appends an entry, evicting the oldest once full.
func (b *Buffer) Add(entry Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// Query filters the buffered entries.
type Query struct {
	Level     string
	Component string
	Search    string
	Limit     int
}

// Entries returns buffered entries matching the query, newest first.
func (b *Buffer) Entries(q Query) []Entry {
	b.mu.RLock()
	all := make([]Entry, 0, b.count)
	start := 0
	if b.count == b.capacity {
		start = b.head
	}
	for i := 0; i < b.count; i++ {
		all = append(all, b.entries[(start+i)%b.capacity])
	}
	b.mu.RUnlock()

	filtered := make([]Entry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		entry := all[i]
		if q.Level != "" && entry.Level != q.Level {
			continue
		}
		if q.Component != "" && entry.Component != q.Component {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(entry.Message), strings.ToLower(q.Search)) {
			continue
		}
		filtered = append(filtered, entry)
		if q.Limit > 0 && len(filtered) >= q.Limit {
			break
		}
	}
	return filtered
}

// Len reports the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Writer adapts the buffer into an io.Writer for zerolog's JSON output.
type Writer struct {
	buffer *Buffer
}

// NewWriter creates a writer that captures JSON log lines into the buffer.
func NewWriter(buffer *Buffer) *Writer {
	return &Writer{buffer: buffer}
}

// Write implements io.Writer. Lines that are not valid JSON are ignored.
func (w *Writer) Write(p []byte) (int, error) {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err != nil {
		return len(p), nil
	}

	entry := Entry{Timestamp: time.Now(), Fields: make(map[string]any)}
	if lvl, ok := raw["level"].(string); ok {
		entry.Level = lvl
		delete(raw, "level")
	}
	if msg, ok := raw["message"].(string); ok {
		entry.Message = msg
		delete(raw, "message")
	}
	if comp, ok := raw["component"].(string); ok {
		entry.Component = comp
		delete(raw, "component")
	}
	delete(raw, "time")
	for k, v := range raw {
		entry.Fields[k] = v
	}

	w.buffer.Add(entry)
	return len(p), nil
}

var _ io.Writer = (*Writer)(nil)
