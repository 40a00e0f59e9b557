// Package list implements the intrusive doubly-linked list used for the
// pager's frame bookkeeping. Links know which list they belong to, so a
// cached page can be moved between the free, unpinned, and pinned lists
// without searching.
package list

// List is a doubly-linked list of Links.
type List struct {
	head *Link
	tail *Link
}

// NewList constructs an empty list.
func NewList() *List {
	return &List{}
}

// PeekHead returns the link at the head of the list, or nil if empty.
func (list *List) PeekHead() *Link {
	return list.head
}

// PeekTail returns the link at the tail of the list, or nil if empty.
func (list *List) PeekTail() *Link {
	return list.tail
}

// PushHead adds a value to the start of the list. Returns the added link.
func (list *List) PushHead(value interface{}) *Link {
	newlink := &Link{list: list, next: list.head, value: value}
	if list.head != nil {
		list.head.prev = newlink
	} else {
		list.tail = newlink
	}
	list.head = newlink
	return newlink
}

// PushTail adds a value to the end of the list. Returns the added link.
func (list *List) PushTail(value interface{}) *Link {
	newlink := &Link{list: list, prev: list.tail, value: value}
	if list.tail != nil {
		list.tail.next = newlink
	} else {
		list.head = newlink
	}
	list.tail = newlink
	return newlink
}

// Find returns the first link for which f evaluates to true, or nil.
func (list *List) Find(f func(*Link) bool) *Link {
	for curr := list.head; curr != nil; curr = curr.next {
		if f(curr) {
			return curr
		}
	}
	return nil
}

// Map applies a function to every link in the list, head to tail.
// Note: Map directly mutates the links in the list.
func (list *List) Map(f func(*Link)) {
	for curr := list.head; curr != nil; curr = curr.next {
		f(curr)
	}
}

// Link is one node of a List.
type Link struct {
	list  *List
	prev  *Link
	next  *Link
	value interface{}
}

// GetList returns the list that this link is a part of.
func (link *Link) GetList() *List {
	return link.list
}

// GetValue returns the link's value.
func (link *Link) GetValue() interface{} {
	return link.value
}

// SetValue sets the link's value.
func (link *Link) SetValue(value interface{}) {
	link.value = value
}

// GetPrev returns the link before this one, or nil at the head.
func (link *Link) GetPrev() *Link {
	return link.prev
}

// GetNext returns the link after this one, or nil at the tail.
func (link *Link) GetNext() *Link {
	return link.next
}

// PopSelf removes this link from its list. The link no longer belongs to
// any list afterwards.
func (link *Link) PopSelf() {
	if link.prev != nil {
		link.prev.next = link.next
	} else {
		link.list.head = link.next
	}
	if link.next != nil {
		link.next.prev = link.prev
	} else {
		link.list.tail = link.prev
	}
	link.list = nil
	link.prev = nil
	link.next = nil
}
