package core

import "sync"

// invocationHistory is a fixed-size ring of the most recent invocations.
type invocationHistory struct {
	mu    sync.Mutex
	items []InvocationRecord
	head  int
	count int
}

func newInvocationHistory(capacity int) *invocationHistory {
	if capacity < 1 {
		capacity = defaultHistoryCapacity
	}
	return &invocationHistory{items: make([]InvocationRecord, capacity)}
}

func (h *invocationHistory) Add(record InvocationRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items[h.head] = record
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

// Recent returns up to limit records, newest first. limit <= 0 means all.
func (h *invocationHistory) Recent(limit int) []InvocationRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}
	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]InvocationRecord, 0, limit)
	for i := range limit {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

func (h *invocationHistory) Last() (InvocationRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return InvocationRecord{}, false
	}
	return h.items[(h.head-1+len(h.items))%len(h.items)], true
}
