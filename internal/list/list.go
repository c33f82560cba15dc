// File: internal/list/list.go
// Package list
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Intrusive doubly linked list. A Node is embedded in its owner and belongs
// to at most one List at a time; Remove reports whether the node was a
// member, which makes removal usable as a linearization point.

package list

// Node links a value into a List.
type Node[T any] struct {
	next, prev *Node[T]
	list       *List[T]
	Value      T
}

// Next returns the following node or nil.
func (n *Node[T]) Next() *Node[T] {
	if n.list == nil || n.next == &n.list.root {
		return nil
	}
	return n.next
}

// Linked reports whether the node is a member of any list.
func (n *Node[T]) Linked() bool {
	return n.list != nil
}

// List is a circular list with a sentinel root. The zero value is empty
// and ready to use.
type List[T any] struct {
	root Node[T]
	len  int
}

func (l *List[T]) lazyInit() {
	if l.root.next == nil {
		l.root.next = &l.root
		l.root.prev = &l.root
	}
}

// Len returns the number of linked nodes.
func (l *List[T]) Len() int {
	return l.len
}

// Front returns the first node or nil.
func (l *List[T]) Front() *Node[T] {
	if l.len == 0 {
		return nil
	}
	return l.root.next
}

// Contains reports whether n is linked into l.
func (l *List[T]) Contains(n *Node[T]) bool {
	return n != nil && n.list == l
}

func (l *List[T]) insert(n, at *Node[T]) {
	n.prev = at
	n.next = at.next
	n.prev.next = n
	n.next.prev = n
	n.list = l
	l.len++
}

// PushBack links n at the tail. A node already linked elsewhere is
// unlinked first.
func (l *List[T]) PushBack(n *Node[T]) {
	l.lazyInit()
	n.unlink()
	l.insert(n, l.root.prev)
}

// PushFront links n at the head.
func (l *List[T]) PushFront(n *Node[T]) {
	l.lazyInit()
	n.unlink()
	l.insert(n, &l.root)
}

// InsertAfter links n right after mark, which must be a member of l.
func (l *List[T]) InsertAfter(n, mark *Node[T]) bool {
	if mark.list != l {
		return false
	}
	n.unlink()
	l.insert(n, mark)
	return true
}

// Remove unlinks n and reports whether n was a member of l.
func (l *List[T]) Remove(n *Node[T]) bool {
	if n == nil || n.list != l {
		return false
	}
	n.prev.next = n.next
	n.next.prev = n.prev
	n.next = nil
	n.prev = nil
	n.list = nil
	l.len--
	return true
}

func (n *Node[T]) unlink() {
	if n.list != nil {
		n.list.Remove(n)
	}
}

// Drain unlinks every node from the head and calls fn after each unlink.
// fn may relink the node elsewhere.
func (l *List[T]) Drain(fn func(n *Node[T])) {
	for n := l.Front(); n != nil; n = l.Front() {
		l.Remove(n)
		fn(n)
	}
}

// Each calls fn for every node in order. fn may remove the node it is given.
func (l *List[T]) Each(fn func(n *Node[T]) bool) {
	for n := l.Front(); n != nil; {
		next := n.Next()
		if !fn(n) {
			return
		}
		n = next
	}
}

// Values returns a snapshot of the linked values in order.
func (l *List[T]) Values() []T {
	out := make([]T, 0, l.len)
	for n := l.Front(); n != nil; n = n.Next() {
		out = append(out, n.Value)
	}
	return out
}
