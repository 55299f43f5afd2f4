package pool

import "iptpool/crypto"

// Queue is a fixed-capacity, front-to-back FIFO of pending withdrawals,
// unique by user. The zero value is an empty queue of capacity zero; callers
// must set Capacity before Enqueue will accept entries.
type Queue struct {
	Capacity uint32
	entries  []PendingWithdrawal
}

// Len returns the number of entries currently queued.
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.entries)
}

// Entries returns a defensive copy of the queue contents, front to back.
func (q *Queue) Entries() []PendingWithdrawal {
	if q == nil || len(q.entries) == 0 {
		return nil
	}
	out := make([]PendingWithdrawal, len(q.entries))
	copy(out, q.entries)
	return out
}

// Enqueue appends a new entry at the back of the queue.
func (q *Queue) Enqueue(p PendingWithdrawal) error {
	if uint32(len(q.entries)) >= q.Capacity {
		return ErrQueueFull
	}
	for _, existing := range q.entries {
		if addrEqual(existing.User, p.User) {
			return ErrAlreadyInQueue
		}
	}
	q.entries = append(q.entries, p)
	return nil
}

// FindByUser returns the index of the entry owned by the given user, or -1
// if none is queued.
func (q *Queue) FindByUser(user crypto.Address) int {
	for i, existing := range q.entries {
		if addrEqual(existing.User, user) {
			return i
		}
	}
	return -1
}

// RemoveAt removes the entry at the given index, preserving front-to-back
// order of the remainder.
func (q *Queue) RemoveAt(index int) {
	if index < 0 || index >= len(q.entries) {
		return
	}
	q.entries = append(q.entries[:index], q.entries[index+1:]...)
}

// RemoveFront removes and returns the entry at the head of the queue. The
// second return value is false when the queue is empty.
func (q *Queue) RemoveFront() (PendingWithdrawal, bool) {
	if len(q.entries) == 0 {
		return PendingWithdrawal{}, false
	}
	front := q.entries[0]
	q.entries = q.entries[1:]
	return front, true
}

func addrEqual(a, b crypto.Address) bool {
	ab, bb := a.Bytes(), b.Bytes()
	if len(ab) != len(bb) {
		return false
	}
	for i := range ab {
		if ab[i] != bb[i] {
			return false
		}
	}
	return true
}
