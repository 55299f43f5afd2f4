package pool

import "testing"

func TestQueueEnqueueRespectsCapacity(t *testing.T) {
	q := Queue{Capacity: 1}
	u1 := makeAddress(0x01)
	u2 := makeAddress(0x02)

	if err := q.Enqueue(PendingWithdrawal{User: u1, ShareAmount: 1}); err != nil {
		t.Fatalf("enqueue u1: %v", err)
	}
	if err := q.Enqueue(PendingWithdrawal{User: u2, ShareAmount: 1}); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestQueueEnqueueRejectsDuplicateUser(t *testing.T) {
	q := Queue{Capacity: 2}
	u1 := makeAddress(0x01)

	if err := q.Enqueue(PendingWithdrawal{User: u1, ShareAmount: 1}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(PendingWithdrawal{User: u1, ShareAmount: 2}); err != ErrAlreadyInQueue {
		t.Fatalf("expected ErrAlreadyInQueue, got %v", err)
	}
}

func TestQueueFIFOOrder(t *testing.T) {
	q := Queue{Capacity: 3}
	u1, u2, u3 := makeAddress(0x01), makeAddress(0x02), makeAddress(0x03)
	if err := q.Enqueue(PendingWithdrawal{User: u1}); err != nil {
		t.Fatalf("enqueue u1: %v", err)
	}
	if err := q.Enqueue(PendingWithdrawal{User: u2}); err != nil {
		t.Fatalf("enqueue u2: %v", err)
	}
	if err := q.Enqueue(PendingWithdrawal{User: u3}); err != nil {
		t.Fatalf("enqueue u3: %v", err)
	}

	front, ok := q.RemoveFront()
	if !ok || !addrEqual(front.User, u1) {
		t.Fatalf("expected u1 at front")
	}
	front, ok = q.RemoveFront()
	if !ok || !addrEqual(front.User, u2) {
		t.Fatalf("expected u2 second")
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", q.Len())
	}
}

func TestQueueRemoveAtPreservesOrder(t *testing.T) {
	q := Queue{Capacity: 3}
	u1, u2, u3 := makeAddress(0x01), makeAddress(0x02), makeAddress(0x03)
	_ = q.Enqueue(PendingWithdrawal{User: u1})
	_ = q.Enqueue(PendingWithdrawal{User: u2})
	_ = q.Enqueue(PendingWithdrawal{User: u3})

	idx := q.FindByUser(u2)
	if idx != 1 {
		t.Fatalf("expected index 1, got %d", idx)
	}
	q.RemoveAt(idx)
	if q.Len() != 2 {
		t.Fatalf("expected 2 remaining, got %d", q.Len())
	}
	entries := q.Entries()
	if !addrEqual(entries[0].User, u1) || !addrEqual(entries[1].User, u3) {
		t.Fatalf("unexpected order after removal: %+v", entries)
	}
}

func TestQueueFindByUserMissing(t *testing.T) {
	q := Queue{Capacity: 1}
	if idx := q.FindByUser(makeAddress(0x09)); idx != -1 {
		t.Fatalf("expected -1, got %d", idx)
	}
}
