package tasks

// Local holds one lazily constructed value per pool worker. Values live
// across Scope calls, so a worker keeps its state from frame to frame.
type Local[T any] struct {
	newFn func() T
	vals  []T
	set   []bool
}

func NewLocal[T any](workers int, newFn func() T) *Local[T] {
	return &Local[T]{
		newFn: newFn,
		vals:  make([]T, workers),
		set:   make([]bool, workers),
	}
}

// Get returns the value owned by worker, creating it on first use. Only the
// goroutine currently running as that worker may call it.
func (l *Local[T]) Get(worker int) T {
	if !l.set[worker] {
		l.vals[worker] = l.newFn()
		l.set[worker] = true
	}
	return l.vals[worker]
}

// Each visits every value created so far. It must not run concurrently
// with a Scope that uses l.
func (l *Local[T]) Each(fn func(worker int, v T)) {
	for i, ok := range l.set {
		if ok {
			fn(i, l.vals[i])
		}
	}
}

func (l *Local[T]) Len() int { return len(l.vals) }
