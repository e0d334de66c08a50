package session

import (
	"container/heap"
	"time"
)

// entry is a session id together with the time it was first seen
type entry struct {
	id    string
	added time.Time
	index int // Index in the heap, maintained by heap package
}

// ageHeap combines a min-heap ordered by first-seen time with a map for key based
// access. It lets eviction find the oldest sessions without a full scan.
// It is not thread-safe, the registry guards it with its write lock.
type ageHeap struct {
	items    []*entry
	itemsMap map[string]*entry
}

func newAgeHeap() *ageHeap {
	return &ageHeap{
		items:    make([]*entry, 0),
		itemsMap: make(map[string]*entry),
	}
}

// Len returns the number of entries (part of heap.Interface)
func (h *ageHeap) Len() int { return len(h.items) }

// Less orders by first-seen time, oldest first (part of heap.Interface)
func (h *ageHeap) Less(i, j int) bool {
	return h.items[i].added.Before(h.items[j].added)
}

// Swap exchanges entries at positions i and j (part of heap.Interface)
func (h *ageHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

// Push adds an entry (part of heap.Interface)
func (h *ageHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(h.items)
	h.items = append(h.items, e)
	h.itemsMap[e.id] = e
}

// Pop removes and returns the oldest entry (part of heap.Interface)
func (h *ageHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	e := old[n-1]
	old[n-1] = nil // Avoid memory leak
	e.index = -1
	h.items = old[:n-1]
	delete(h.itemsMap, e.id)
	return e
}

// add inserts the id unless it is already present
func (h *ageHeap) add(id string, added time.Time) {
	if _, exists := h.itemsMap[id]; exists {
		return
	}
	heap.Push(h, &entry{id: id, added: added})
}

// remove removes the id, it returns false if it was not present
func (h *ageHeap) remove(id string) bool {
	e, exists := h.itemsMap[id]
	if !exists {
		return false
	}
	heap.Remove(h, e.index)
	return true
}

// peek returns the oldest entry without removing it
func (h *ageHeap) peek() (*entry, bool) {
	if len(h.items) == 0 {
		return nil, false
	}
	return h.items[0], true
}
