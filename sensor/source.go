package sensor

import (
	"context"
	"sync"
)

// Source delivers samples of one hardware stream at its own cadence
// The returned cancel detaches fn; implementations must be safe to call it
// more than once
type Source[T any] interface {
	Subscribe(fn func(T)) (cancel func())
}

// Permission is the answer to an explicit consent request
type Permission uint8

const (
	PermissionPrompt Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "prompt"
	}
}

// ParsePermission maps the host wire spelling back to a Permission
func ParsePermission(s string) Permission {
	switch s {
	case "granted":
		return PermissionGranted
	case "denied":
		return PermissionDenied
	default:
		return PermissionPrompt
	}
}

// PermissionRequester is implemented by sources on hosts that require
// explicit user consent before delivering readings
type PermissionRequester interface {
	RequestPermission(ctx context.Context) (Permission, error)
}

// Feed is a fan-out helper for sources that publish from a single reader
// Subscribers are called in registration order on the publishing goroutine
type Feed[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(T)
	order  []int
}

// Subscribe registers fn and returns its idempotent cancel
func (f *Feed[T]) Subscribe(fn func(T)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subs == nil {
		f.subs = make(map[int]func(T))
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.order = append(f.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { f.remove(id) })
	}
}

func (f *Feed[T]) remove(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.subs, id)
	for i, v := range f.order {
		if v == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// Publish delivers v to a snapshot of current subscribers
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	fns := make([]func(T), 0, len(f.order))
	for _, id := range f.order {
		fns = append(fns, f.subs[id])
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the current subscriber count
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}
