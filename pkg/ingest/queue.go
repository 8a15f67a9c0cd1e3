// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingest

import "sync"

// queue is an unbounded FIFO shared by a stage's workers. Unlike a
// channel it allows re-enqueueing at the tail after the producer side
// has closed, which the embedding stage needs for rate-limit backoff.
type queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	closed bool

	// pending counts items handed out but not yet acknowledged, so
	// Pop can distinguish "drained" from "momentarily empty".
	pending int
}

func newQueue[T any]() *queue[T] {
	q := &queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends one item. Pushing to a closed queue is allowed until the
// last pending item is acknowledged; this is the re-enqueue path.
func (q *queue[T]) Push(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	q.cond.Signal()
}

// Pop blocks until an item is available or the queue is drained. The
// second return is false only when the queue is closed, empty, and no
// item is still in flight.
func (q *queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			q.pending++
			return item, true
		}
		if q.closed && q.pending == 0 {
			var zero T
			return zero, false
		}
		q.cond.Wait()
	}
}

// Done acknowledges one popped item. An item that was re-enqueued must
// still be acknowledged once its Push completes.
func (q *queue[T]) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending--
	if q.pending == 0 {
		q.cond.Broadcast()
	}
}

// Close marks the producer side finished. Blocked Pops return once the
// backlog and all in-flight items drain.
func (q *queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Len reports the current backlog.
func (q *queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
