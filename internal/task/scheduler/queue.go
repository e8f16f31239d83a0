package scheduler

import (
	"container/heap"
	"time"
)

// entryHeap is a container/heap over entries ordered by (dueAt, seq):
// earliest first, insertion order among equal due times.
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if !h[i].dueAt.Equal(h[j].dueAt) {
		return h[i].dueAt.Before(h[j].dueAt)
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// compactMinTombstones is the tombstone count below which the heap is never rebuilt.
const compactMinTombstones = 64

// taskQueue is the scheduler's due-time ordered queue. Not safe for
// concurrent use; the Scheduler guards it with its mutex.
//
// Cancellation is lazy: a cancelled entry is dropped from byID and flagged,
// and stays in the heap until it reaches the top. byID therefore holds
// exactly the live queued entries.
type taskQueue struct {
	heap entryHeap
	byID map[TaskID]*entry

	// current is the entry popped by the worker and still executing.
	current *entry

	seq        uint64
	tombstones int
}

func newTaskQueue() *taskQueue {
	return &taskQueue{byID: make(map[TaskID]*entry)}
}

func (q *taskQueue) insert(e *entry) TaskID {
	q.seq++
	e.seq = q.seq
	heap.Push(&q.heap, e)
	q.byID[e.id] = e
	return e.id
}

// cancel tombstones id. It also cancels the executing entry if it repeats,
// which prevents its next occurrence. It returns false for unknown ids,
// already cancelled ids and an executing one-shot entry.
func (q *taskQueue) cancel(id TaskID) bool {
	if e, ok := q.byID[id]; ok {
		delete(q.byID, id)
		e.cancelled = true
		q.tombstones++
		q.maybeCompact()
		return true
	}
	if c := q.current; c != nil && c.id == id && c.mode != RepeatNone && !c.cancelled {
		c.cancelled = true
		return true
	}
	return false
}

// popDueBefore pops the earliest live entry if it is due at now.
func (q *taskQueue) popDueBefore(now time.Time) *entry {
	q.dropTopTombstones()
	if len(q.heap) == 0 || q.heap[0].dueAt.After(now) {
		return nil
	}
	e := heap.Pop(&q.heap).(*entry)
	delete(q.byID, e.id)
	return e
}

func (q *taskQueue) peekDueAt() (time.Time, bool) {
	q.dropTopTombstones()
	if len(q.heap) == 0 {
		return time.Time{}, false
	}
	return q.heap[0].dueAt, true
}

// clear cancels every queued entry and the executing repeating entry, if any.
func (q *taskQueue) clear() int {
	n := len(q.byID)
	for _, e := range q.heap {
		e.cancelled = true
		e.index = -1
	}
	q.heap = nil
	q.byID = make(map[TaskID]*entry)
	q.tombstones = 0
	if c := q.current; c != nil && c.mode != RepeatNone && !c.cancelled {
		c.cancelled = true
		n++
	}
	return n
}

func (q *taskQueue) live() int { return len(q.byID) }

func (q *taskQueue) dropTopTombstones() {
	for len(q.heap) > 0 && q.heap[0].cancelled {
		heap.Pop(&q.heap)
		q.tombstones--
	}
}

// maybeCompact rebuilds the heap without tombstones once they outnumber live
// entries, so cancelling far-future tasks can't grow the heap without bound.
func (q *taskQueue) maybeCompact() {
	if q.tombstones < compactMinTombstones || q.tombstones <= len(q.byID) {
		return
	}
	kept := q.heap[:0]
	for _, e := range q.heap {
		if e.cancelled {
			e.index = -1
			continue
		}
		e.index = len(kept)
		kept = append(kept, e)
	}
	for i := len(kept); i < len(q.heap); i++ {
		q.heap[i] = nil
	}
	q.heap = kept
	heap.Init(&q.heap)
	q.tombstones = 0
}
