package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type memLock struct {
	l   *memLocker
	key string
}

func (m *memLock) Release(context.Context) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	delete(m.l.held, m.key)
	m.l.released++
	return nil
}

type memLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released int
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]bool{}}
}

func (m *memLocker) Obtain(_ context.Context, key string) (Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return nil, ErrInProgress
	}
	m.held[key] = true
	return &memLock{l: m, key: key}, nil
}

type stubTrigger struct {
	calls  int
	result Result
	err    error
	during func()
}

func (s *stubTrigger) Trigger(context.Context, Request) (Result, error) {
	s.calls++
	if s.during != nil {
		s.during()
	}
	return s.result, s.err
}

func TestGuard_ReleasesAfterTrigger(t *testing.T) {
	locker := newMemLocker()
	next := &stubTrigger{result: Result{Accepted: true, Reference: "R1"}}
	g := NewGuard(next, locker)

	for i := 0; i < 2; i++ {
		res, err := g.Trigger(context.Background(), Request{Plate: "KCA123A"})
		if err != nil || !res.Accepted {
			t.Fatalf("Trigger() #%d = %+v, %v", i, res, err)
		}
	}
	if next.calls != 2 || locker.released != 2 {
		t.Errorf("calls = %d, released = %d; want 2 and 2", next.calls, locker.released)
	}
}

func TestGuard_RejectsConcurrentTriggerForSamePlate(t *testing.T) {
	locker := newMemLocker()
	g := NewGuard(nil, locker)

	var nestedErr error
	next := &stubTrigger{result: Result{Accepted: true}}
	next.during = func() {
		_, nestedErr = g.Trigger(context.Background(), Request{Plate: "KCA123A"})
	}
	g.next = next

	if _, err := g.Trigger(context.Background(), Request{Plate: "KCA123A"}); err != nil {
		t.Fatalf("outer Trigger() error = %v", err)
	}
	if !errors.Is(nestedErr, ErrInProgress) {
		t.Errorf("nested Trigger() error = %v, want ErrInProgress", nestedErr)
	}
	if next.calls != 1 {
		t.Errorf("collaborator called %d times, want 1", next.calls)
	}
}

func TestGuard_DifferentPlatesDoNotBlock(t *testing.T) {
	locker := newMemLocker()
	g := NewGuard(nil, locker)

	var nestedErr error
	next := &stubTrigger{result: Result{Accepted: true}}
	next.during = func() {
		if next.calls == 1 {
			_, nestedErr = g.Trigger(context.Background(), Request{Plate: "KDA999Z"})
		}
	}
	g.next = next

	if _, err := g.Trigger(context.Background(), Request{Plate: "KCA123A"}); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if nestedErr != nil {
		t.Errorf("other plate blocked: %v", nestedErr)
	}
}

func TestGuard_PropagatesCollaboratorError(t *testing.T) {
	boom := errors.New("boom")
	locker := newMemLocker()
	g := NewGuard(&stubTrigger{err: boom}, locker)
	if _, err := g.Trigger(context.Background(), Request{Plate: "KCA123A"}); !errors.Is(err, boom) {
		t.Errorf("Trigger() error = %v, want boom", err)
	}
	if locker.released != 1 {
		t.Errorf("lock released %d times, want 1", locker.released)
	}
}
