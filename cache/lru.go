// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

// doubly linked list, head is the most recently used data-bin
type lruList struct {
	head *entry
	tail *entry
}

func (l *lruList) pushHead(e *entry) {
	e.prev = nil
	e.next = l.head
	if nil != l.head {
		l.head.prev = e
	} else {
		l.tail = e
	}
	l.head = e
}

func (l *lruList) pushTail(e *entry) {
	e.next = nil
	e.prev = l.tail
	if nil != l.tail {
		l.tail.next = e
	} else {
		l.head = e
	}
	l.tail = e
}

func (l *lruList) unlink(e *entry) {
	if nil != e.prev {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if nil != e.next {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (l *lruList) promote(e *entry) {
	if l.head == e {
		return
	}
	l.unlink(e)
	l.pushHead(e)
}

func (l *lruList) demote(e *entry) {
	if l.tail == e {
		return
	}
	l.unlink(e)
	l.pushTail(e)
}
