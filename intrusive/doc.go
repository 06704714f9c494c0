// Package intrusive provides zero-allocation FIFO queue, MPSC queue, and
// LIFO stack containers over caller-owned nodes.
//
// Every container is non-owning: a node embeds a [Hook] field and
// implements [Linked] by returning a pointer to it. Push and Pop never
// allocate; the containers only ever follow pointers the caller already
// owns. A node must be linked into at most one container at a time —
// violating this is a caller bug, checked in debug builds (see
// debug_on.go).
//
// # Container selection
//
//   - [FIFO]: single-consumer, O(1) push/pop, plus Splice and InsertSorted
//     for the timer set.
//   - [MPSC]: lock-free (CAS-loop) push from any number of producers, lock-free pop
//     from a single consumer. Producers push onto a shared lock-free LIFO;
//     the consumer detaches and reverses it to recover FIFO order.
//   - [Stack]: single-threaded LIFO, for free-list reuse.
package intrusive
