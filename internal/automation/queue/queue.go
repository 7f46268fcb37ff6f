// Package queue holds account runs that are waiting for an executor slot.
// The durable source of truth is the account_runs table; this queue is the
// in-memory dispatch order, rebuilt from the database on startup.
package queue

import (
	"container/heap"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when the queue is at max capacity
	ErrQueueFull = errors.New("queue is full")
	// ErrRunExists is returned when an account run is already queued
	ErrRunExists = errors.New("account run already exists in queue")
)

// QueuedRun represents one pending account run.
type QueuedRun struct {
	AccountRunID string
	WorkspaceID  string
	RunID        string
	QueuedAt     time.Time
	index        int // Index in the heap (used by container/heap)
}

// runHeap implements heap.Interface ordered by enqueue time, so dispatch is
// first-in first-out even after removals.
type runHeap []*QueuedRun

func (h runHeap) Len() int { return len(h) }

func (h runHeap) Less(i, j int) bool {
	return h[i].QueuedAt.Before(h[j].QueuedAt)
}

func (h runHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *runHeap) Push(x interface{}) {
	n := len(*h)
	item := x.(*QueuedRun)
	item.index = n
	*h = append(*h, item)
}

func (h *runHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	*h = old[0 : n-1]
	return item
}

// RunQueue manages the pending account runs.
type RunQueue struct {
	mu      sync.RWMutex
	heap    runHeap
	runMap  map[string]*QueuedRun // For quick lookup by account run ID
	maxSize int
}

// NewRunQueue creates a new run queue. maxSize <= 0 means unbounded.
func NewRunQueue(maxSize int) *RunQueue {
	q := &RunQueue{
		heap:    make(runHeap, 0),
		runMap:  make(map[string]*QueuedRun),
		maxSize: maxSize,
	}
	heap.Init(&q.heap)
	return q
}

// Enqueue adds an account run to the queue.
// Returns error if the queue is full or the run is already queued.
func (q *RunQueue) Enqueue(run QueuedRun) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.runMap[run.AccountRunID]; exists {
		return ErrRunExists
	}

	if q.maxSize > 0 && len(q.heap) >= q.maxSize {
		return ErrQueueFull
	}

	qr := run
	if qr.QueuedAt.IsZero() {
		qr.QueuedAt = time.Now()
	}

	heap.Push(&q.heap, &qr)
	q.runMap[qr.AccountRunID] = &qr
	return nil
}

// Dequeue removes and returns the oldest pending run.
// Returns nil if the queue is empty.
func (q *RunQueue) Dequeue() *QueuedRun {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) == 0 {
		return nil
	}

	qr := heap.Pop(&q.heap).(*QueuedRun)
	delete(q.runMap, qr.AccountRunID)
	return qr
}

// Remove removes a specific account run from the queue.
func (q *RunQueue) Remove(accountRunID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	qr, exists := q.runMap[accountRunID]
	if !exists {
		return false
	}

	heap.Remove(&q.heap, qr.index)
	delete(q.runMap, accountRunID)
	return true
}

// Contains reports whether an account run is currently queued.
func (q *RunQueue) Contains(accountRunID string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	_, exists := q.runMap[accountRunID]
	return exists
}

// Len returns the number of pending runs.
func (q *RunQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return len(q.heap)
}

// IsFull returns true if the queue is at max capacity.
func (q *RunQueue) IsFull() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.maxSize > 0 && len(q.heap) >= q.maxSize
}

// List returns all pending runs (for status endpoints).
func (q *RunQueue) List() []*QueuedRun {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]*QueuedRun, len(q.heap))
	copy(result, q.heap)
	return result
}
