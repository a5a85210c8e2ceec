package lsh

import (
	"container/heap"
	"time"
)

// expiryItem is a (key, expiry) pair in the min-heap. Items are never
// updated in place: refreshing a key's expiry pushes a second item, and
// Sweep discards the stale one when it surfaces.
type expiryItem struct {
	key       string
	expiresAt time.Time
}

type expiryHeap struct {
	items []expiryItem
}

func (h *expiryHeap) Len() int { return len(h.items) }

func (h *expiryHeap) Less(i, j int) bool {
	return h.items[i].expiresAt.Before(h.items[j].expiresAt)
}

func (h *expiryHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

func (h *expiryHeap) Push(x any) {
	h.items = append(h.items, x.(expiryItem))
}

func (h *expiryHeap) Pop() any {
	last := len(h.items) - 1
	item := h.items[last]
	h.items = h.items[:last]
	return item
}

func (h *expiryHeap) push(key string, expiresAt time.Time) {
	heap.Push(h, expiryItem{key: key, expiresAt: expiresAt})
}

// peek returns the earliest-expiring item without removing it.
func (h *expiryHeap) peek() (string, time.Time, bool) {
	if len(h.items) == 0 {
		return "", time.Time{}, false
	}
	return h.items[0].key, h.items[0].expiresAt, true
}

func (h *expiryHeap) pop() {
	heap.Pop(h)
}
