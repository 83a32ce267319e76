package input

import (
	"fmt"
	"sync"
)

// lazy memoizes one resolution. The first caller runs fn while later callers
// block on the lock and then read the cached value or error. A panic inside fn
// is cached as an error.
type lazy[T any] struct {
	mu   sync.Mutex
	done bool
	val  T
	err  error
}

func (l *lazy[T]) get(fn func() (T, error)) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.done {
		l.val, l.err = call(fn)
		l.done = true
	}
	return l.val, l.err
}

// reset drops the cached outcome so the memory can be reclaimed.
func (l *lazy[T]) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	var zero T
	l.val, l.err, l.done = zero, nil, false
}

func call[T any](fn func() (T, error)) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during resolution: %v", r)
		}
	}()
	return fn()
}
