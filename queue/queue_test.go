package queue

import (
	"errors"
	"testing"
)

func TestRingPushPopFIFO(t *testing.T) {
	r := NewRing[int](4)
	for i := 0; i < 4; i++ {
		if !r.TryPush(i) {
			t.Fatalf("push %d: expected success", i)
		}
	}
	if r.TryPush(99) {
		t.Fatalf("expected push to fail once full")
	}
	for i := 0; i < 4; i++ {
		v, ok := r.TryPop()
		if !ok {
			t.Fatalf("pop %d: expected success", i)
		}
		if v != i {
			t.Fatalf("expected FIFO order, got %d want %d", v, i)
		}
	}
	if _, ok := r.TryPop(); ok {
		t.Fatalf("expected pop to fail once empty")
	}
}

func TestRingWrapAround(t *testing.T) {
	r := NewRing[int](2)
	r.TryPush(1)
	r.TryPush(2)
	v, _ := r.TryPop()
	if v != 1 {
		t.Fatalf("got %d want 1", v)
	}
	r.TryPush(3)
	v, _ = r.TryPop()
	if v != 2 {
		t.Fatalf("got %d want 2", v)
	}
	v, _ = r.TryPop()
	if v != 3 {
		t.Fatalf("got %d want 3", v)
	}
}

func TestRingCapacityRoundsToPowerOfTwo(t *testing.T) {
	r := NewRing[int](3)
	if r.Cap() != 4 {
		t.Fatalf("expected capacity rounded up to 4, got %d", r.Cap())
	}
}

func TestFramedRoundTrip(t *testing.T) {
	q := NewFramed(2)
	if !q.TryPushBytes([]byte("hello"), nil) {
		t.Fatal("expected push to succeed")
	}
	f, ok := q.TryPop()
	if !ok {
		t.Fatal("expected pop to succeed")
	}
	if string(f.Bytes()) != "hello" {
		t.Fatalf("got %q want %q", f.Bytes(), "hello")
	}
	if f.Err() != nil {
		t.Fatalf("expected nil err, got %v", f.Err())
	}
}

func TestFramedCarriesError(t *testing.T) {
	q := NewFramed(1)
	sentinel := errors.New("boom")
	q.TryPushBytes(nil, sentinel)
	f, _ := q.TryPop()
	if f.Err() != sentinel {
		t.Fatalf("expected sentinel error, got %v", f.Err())
	}
}

func TestFramedDropsWhenFull(t *testing.T) {
	q := NewFramed(1)
	if !q.TryPushBytes([]byte("a"), nil) {
		t.Fatal("expected first push to succeed")
	}
	if q.TryPushBytes([]byte("b"), nil) {
		t.Fatal("expected second push to be dropped")
	}
	f, _ := q.TryPop()
	if string(f.Bytes()) != "a" {
		t.Fatalf("expected surviving frame to be the first one, got %q", f.Bytes())
	}
}
