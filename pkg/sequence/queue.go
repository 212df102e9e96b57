// Package sequence holds small generic containers shared by the core packages.
package sequence

import "container/heap"

// Item is a queued value. The handle stays valid until the item is popped or removed.
type Item[T any] struct {
	Value T
	index int
}

// Queued reports whether the item is still in its queue.
func (i *Item[T]) Queued() bool { return i.index >= 0 }

type items[T any] struct {
	list []*Item[T]
	less func(a, b T) bool
}

func (q *items[T]) Len() int           { return len(q.list) }
func (q *items[T]) Less(i, j int) bool { return q.less(q.list[i].Value, q.list[j].Value) }

func (q *items[T]) Swap(i, j int) {
	q.list[i], q.list[j] = q.list[j], q.list[i]
	q.list[i].index = i
	q.list[j].index = j
}

func (q *items[T]) Push(x any) {
	item := x.(*Item[T])
	item.index = len(q.list)
	q.list = append(q.list, item)
}

func (q *items[T]) Pop() any {
	old := q.list
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	q.list = old[:n-1]
	return item
}

// PriorityQueue pops the least value first according to less.
type PriorityQueue[T any] struct {
	q items[T]
}

func NewPriorityQueue[T any](less func(a, b T) bool) *PriorityQueue[T] {
	return &PriorityQueue[T]{q: items[T]{less: less}}
}

func (pq *PriorityQueue[T]) Enqueue(value T) *Item[T] {
	item := &Item[T]{Value: value}
	heap.Push(&pq.q, item)
	return item
}

func (pq *PriorityQueue[T]) Dequeue() (T, bool) {
	if pq.q.Len() == 0 {
		var zero T
		return zero, false
	}
	return heap.Pop(&pq.q).(*Item[T]).Value, true
}

func (pq *PriorityQueue[T]) Peek() (T, bool) {
	if pq.q.Len() == 0 {
		var zero T
		return zero, false
	}
	return pq.q.list[0].Value, true
}

// Remove takes an item out of the queue. It reports false when the item was already
// popped or removed.
func (pq *PriorityQueue[T]) Remove(item *Item[T]) bool {
	if item == nil || item.index < 0 || item.index >= pq.q.Len() || pq.q.list[item.index] != item {
		return false
	}
	heap.Remove(&pq.q, item.index)
	return true
}

// Clear empties the queue and returns the number of dropped items.
func (pq *PriorityQueue[T]) Clear() int {
	n := len(pq.q.list)
	for _, item := range pq.q.list {
		item.index = -1
	}
	pq.q.list = nil
	return n
}

func (pq *PriorityQueue[T]) Len() int { return pq.q.Len() }

func (pq *PriorityQueue[T]) IsEmpty() bool { return pq.q.Len() == 0 }
