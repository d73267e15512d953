package list

import "testing"

func TestPushBackFrontOrder(t *testing.T) {
	l := New[int]()
	a, b, c := NewNode(1), NewNode(2), NewNode(3)
	l.PushBack(a)
	l.PushBack(b)
	l.PushBack(c)

	if l.Len() != 3 {
		t.Fatalf("expected len 3, got %d", l.Len())
	}

	var got []int
	l.Do(func(n *Node[int]) { got = append(got, n.Value) })
	want := []int{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestRemoveMiddle(t *testing.T) {
	l := New[string]()
	a, b, c := NewNode("a"), NewNode("b"), NewNode("c")
	l.PushBack(a)
	l.PushBack(b)
	l.PushBack(c)

	l.Remove(b)
	if l.Len() != 2 {
		t.Fatalf("expected len 2 after remove, got %d", l.Len())
	}
	if b.InList() {
		t.Error("expected removed node to report not in list")
	}

	// Removing again is a no-op, not a panic or double-decrement.
	l.Remove(b)
	if l.Len() != 2 {
		t.Fatalf("expected len unchanged on double remove, got %d", l.Len())
	}
}

func TestPopFrontEmpty(t *testing.T) {
	l := New[int]()
	if n := l.PopFront(); n != nil {
		t.Fatal("expected nil PopFront on empty list")
	}
}

func TestNextCircularWraps(t *testing.T) {
	l := New[int]()
	a, b := NewNode(1), NewNode(2)
	l.PushBack(a)
	l.PushBack(b)

	if a.NextCircular() != b {
		t.Error("expected a.NextCircular() == b")
	}
	if b.NextCircular() != a {
		t.Error("expected wraparound: b.NextCircular() == a")
	}
}

func TestNextCircularSingleton(t *testing.T) {
	l := New[int]()
	a := NewNode(1)
	l.PushBack(a)

	if a.NextCircular() != a {
		t.Error("expected singleton node to circularly point at itself")
	}
}

func TestNextCircularEmptiedList(t *testing.T) {
	l := New[int]()
	a := NewNode(1)
	l.PushBack(a)
	l.Remove(a)

	if a.NextCircular() != nil {
		t.Error("expected NextCircular on an unlinked node to be nil")
	}
}

func TestByteRingWriteReadWraps(t *testing.T) {
	r := NewByteRing(4, 2, 32768) // rounds to 4
	if r.Cap() != 4 {
		t.Fatalf("expected capacity 4, got %d", r.Cap())
	}

	n := r.Write([]byte{1, 2, 3})
	if n != 3 {
		t.Fatalf("expected to write 3 bytes, got %d", n)
	}

	out := make([]byte, 2)
	got := r.Read(out)
	if got != 2 || out[0] != 1 || out[1] != 2 {
		t.Fatalf("expected to read [1 2], got %v (n=%d)", out, got)
	}

	// Write enough to wrap around the ring.
	n = r.Write([]byte{4, 5, 6})
	if n != 3 {
		t.Fatalf("expected to write remaining 3 bytes (free=%d), got %d", r.Free(), n)
	}

	out = make([]byte, 4)
	got = r.Read(out)
	want := []byte{3, 4, 5, 6}
	if got != 4 {
		t.Fatalf("expected to read 4 bytes, got %d", got)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, out)
		}
	}
}

func TestByteRingFreeUsedInvariant(t *testing.T) {
	r := NewByteRing(8, 2, 32768)
	r.Write([]byte{1, 2, 3})
	if r.Len()+r.Free() != r.Cap() {
		t.Errorf("expected used+free == cap, got used=%d free=%d cap=%d", r.Len(), r.Free(), r.Cap())
	}
}

func TestPtrRingEnqueueDequeueFIFO(t *testing.T) {
	r := NewPtrRing[int](2, 2, 32768)
	if !r.Enqueue(1) || !r.Enqueue(2) {
		t.Fatal("expected first two enqueues to succeed")
	}
	if r.Enqueue(3) {
		t.Fatal("expected enqueue on full ring to fail")
	}

	v, ok := r.Dequeue()
	if !ok || v != 1 {
		t.Fatalf("expected to dequeue 1, got %v ok=%v", v, ok)
	}
	if !r.Enqueue(3) {
		t.Fatal("expected enqueue to succeed after a dequeue frees a slot")
	}

	v, ok = r.Dequeue()
	if !ok || v != 2 {
		t.Fatalf("expected to dequeue 2, got %v ok=%v", v, ok)
	}
	v, ok = r.Dequeue()
	if !ok || v != 3 {
		t.Fatalf("expected to dequeue 3, got %v ok=%v", v, ok)
	}
	if _, ok = r.Dequeue(); ok {
		t.Fatal("expected dequeue on empty ring to fail")
	}
}
