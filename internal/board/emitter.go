package board

import "sync"

// emitter fans values out to observers in registration order.
//
// Values carry the version of the state they were taken from; a value older
// than the last one delivered is dropped, so observers never go back in time
// when two goroutines publish at once. Observers run with the emitter locked
// and must not register or cancel observers themselves.
type emitter[T any] struct {
	mu      sync.Mutex
	next    int
	fns     []observer[T]
	emitted uint64
}

type observer[T any] struct {
	id int
	fn func(T)
}

func (e *emitter[T]) add(fn func(T)) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.next++
	id := e.next
	e.fns = append(e.fns, observer[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, o := range e.fns {
				if o.id == id {
					e.fns = append(e.fns[:i:i], e.fns[i+1:]...)
					return
				}
			}
		})
	}
}

func (e *emitter[T]) emit(version uint64, v T) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if version <= e.emitted {
		return
	}
	e.emitted = version
	for _, o := range e.fns {
		o.fn(v)
	}
}
