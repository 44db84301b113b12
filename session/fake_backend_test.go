package session

import (
	"context"
	"errors"
	"sync"
)

// fakeBackend is a scriptable Backend for store and listener tests.
type fakeBackend struct {
	mu          sync.Mutex
	checkResult *Session
	checkErr    error
	checkCalls  int
	checkGate   chan struct{}
	signOutErr  error
	signOuts    int
	subscribers map[int]func(*Session)
	nextID      int
	subErr      error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{subscribers: make(map[int]func(*Session))}
}

func (f *fakeBackend) CheckSession(ctx context.Context) (*Session, error) {
	f.mu.Lock()
	f.checkCalls++
	gate := f.checkGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkResult.Clone(), f.checkErr
}

func (f *fakeBackend) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts++
	return f.signOutErr
}

func (f *fakeBackend) Subscribe(fn func(*Session)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	id := f.nextID
	f.nextID++
	f.subscribers[id] = fn
	return SubscriptionFunc(func() {
		f.mu.Lock()
		delete(f.subscribers, id)
		f.mu.Unlock()
	}), nil
}

// emit delivers a notification synchronously to every subscriber.
func (f *fakeBackend) emit(s *Session) {
	f.mu.Lock()
	fns := make([]func(*Session), 0, len(f.subscribers))
	for _, fn := range f.subscribers {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(s.Clone())
	}
}

func (f *fakeBackend) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

var errBackendDown = errors.New("backend unavailable")
