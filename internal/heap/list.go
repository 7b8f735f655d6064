package heap

import "unsafe"

// FreeNode overlays the first machine word of a freed block. A block only
// ever "begins its lifetime as FreeNode" between a Free and the matching
// Alloc that reclaims it (spec.md §9, "Intrusive freelists"); it must never
// be read through this type while the block is live.
type FreeNode struct {
	Next unsafe.Pointer
}

// PushFront prepends ptr to the singly linked list rooted at *head,
// treating the first word of ptr's block as the link. Used by every
// size-class freelist for O(1) free.
func PushFront(head *unsafe.Pointer, ptr unsafe.Pointer) {
	node := (*FreeNode)(ptr)
	node.Next = *head
	*head = ptr
}

// PopFront removes and returns the head of the list rooted at *head, or nil
// if the list is empty.
func PopFront(head *unsafe.Pointer) unsafe.Pointer {
	if *head == nil {
		return nil
	}

	ptr := *head
	node := (*FreeNode)(ptr)
	*head = node.Next

	return ptr
}

// Len walks the list rooted at head and returns its length. Used only by
// tests and diagnostics (spec.md §8 property 8, freelist acyclicity) — never
// on a hot path, since it is O(n).
func Len(head unsafe.Pointer) int {
	n := 0
	for p := head; p != nil; {
		n++
		node := (*FreeNode)(p)
		p = node.Next
	}

	return n
}

// DNode is a doubly linked intrusive node, used by the debug/leak-tracing
// collaborator which must remove arbitrary live entries in O(1)
// (spec.md §6: "maintains a doubly linked list of live allocations").
type DNode struct {
	Prev, Next *DNode
}

// DList is a circular doubly linked sentinel-based list.
type DList struct {
	sentinel DNode
}

// Init prepares an empty list.
func (l *DList) Init() {
	l.sentinel.Next = &l.sentinel
	l.sentinel.Prev = &l.sentinel
}

// PushBack inserts n at the tail of the list.
func (l *DList) PushBack(n *DNode) {
	if l.sentinel.Next == nil {
		l.Init()
	}

	last := l.sentinel.Prev
	n.Prev = last
	n.Next = &l.sentinel
	last.Next = n
	l.sentinel.Prev = n
}

// Remove unlinks n from whichever list it is in.
func (l *DList) Remove(n *DNode) {
	n.Prev.Next = n.Next
	n.Next.Prev = n.Prev
	n.Prev = nil
	n.Next = nil
}

// Each calls fn for every node in the list, head to tail.
func (l *DList) Each(fn func(*DNode)) {
	if l.sentinel.Next == nil {
		return
	}

	for n := l.sentinel.Next; n != &l.sentinel; n = n.Next {
		fn(n)
	}
}
