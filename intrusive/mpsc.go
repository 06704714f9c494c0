package intrusive

import "sync/atomic"

// MPSC is an intrusive multi-producer, single-consumer queue. Push is
// lock-free (a CAS retry loop, so not wait-free: a producer can retry
// while others keep winning) and safe from any number of concurrent
// producers. TryPop is
// lock-free and must only ever be called from a single consumer
// goroutine at a time — the reactor's poll loop.
//
// Producers push onto a shared lock-free LIFO (a single CAS loop on
// producerHead). When the consumer's private list runs dry it detaches
// the producer LIFO in one swap and reverses it, which restores the
// order producers actually pushed in: if producer A's push of x
// happened-before producer B's push of y (in the sense that both
// completed before the consumer observes them), x comes out of TryPop
// before y.
type MPSC[T any, P Linked[T]] struct {
	producerHead atomic.Pointer[T]
	consumerHead P
}

// Push adds node to the queue. Safe for concurrent use by any number of
// producers.
func (q *MPSC[T, P]) Push(node P) {
	h := node.Link()
	markLinked(h)
	for {
		old := q.producerHead.Load()
		h.next.Store(old)
		if q.producerHead.CompareAndSwap(old, (*T)(node)) {
			return
		}
	}
}

// TryPop removes and returns the oldest pushed node, or reports false
// if the queue is empty. Must be called from a single consumer.
func (q *MPSC[T, P]) TryPop() (P, bool) {
	var zero P
	if q.consumerHead != zero {
		node := q.consumerHead
		q.consumerHead = P(node.Link().next.Load())
		node.Link().clear()
		return node, true
	}

	old := q.producerHead.Swap(nil)
	if old == nil {
		return zero, false
	}

	// old is a LIFO (most-recently-pushed first); reverse it in place
	// to recover push order before handing nodes to the consumer.
	var prev P
	cur := P(old)
	for cur != zero {
		next := P(cur.Link().next.Load())
		cur.Link().next.Store((*T)(prev))
		prev = cur
		cur = next
	}
	q.consumerHead = prev

	node := q.consumerHead
	q.consumerHead = P(node.Link().next.Load())
	node.Link().clear()
	return node, true
}

// Drain moves every currently-available node, in push order, onto the
// tail of dst and returns the number of nodes moved. It never blocks
// waiting on producers still mid-push.
func (q *MPSC[T, P]) Drain(dst *FIFO[T, P]) int {
	n := 0
	for {
		node, ok := q.TryPop()
		if !ok {
			return n
		}
		dst.Push(node)
		n++
	}
}
