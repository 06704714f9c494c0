package intrusive

import "sync/atomic"

// Hook is an intrusive link embedded by value in a node of type T. Its
// zero value is unlinked.
type Hook[T any] struct {
	next   atomic.Pointer[T]
	linked atomic.Bool // debug bookkeeping only, see debug_on.go/debug_off.go
}

// Linked is implemented by a node's pointer type to expose its embedded
// [Hook]:
//
//	type Request struct {
//	    hook intrusive.Hook[Request]
//	    // ...
//	}
//
//	func (r *Request) Link() *intrusive.Hook[Request] { return &r.hook }
type Linked[T any] interface {
	*T
	Link() *Hook[T]
}

// clear unlinks the hook: pop contracts never leave a dangling next
// pointer, and debug builds verify the node can be pushed again.
func (h *Hook[T]) clear() {
	h.next.Store(nil)
	if debugChecks {
		h.linked.Store(false)
	}
}

// markLinked panics in debug builds if the node is already linked
// elsewhere; it is a no-op in release builds.
func markLinked[T any](h *Hook[T]) {
	if debugChecks && h.linked.Swap(true) {
		panic("intrusive: node is already linked into a container")
	}
}
