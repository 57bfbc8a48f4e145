// Package fetch runs a page's independent data loads concurrently. Each
// task carries its own result and error so one failing fetch never blocks
// or fails the others.
package fetch

// Result pairs a fetched value with the error of its own fetch only.
type Result[T any] struct {
	Data T
	Err  error
}

// Task is an in-flight fetch started with Start.
type Task[T any] struct {
	done chan Result[T]
}

// Start launches fn and returns immediately. The caller joins with Wait.
func Start[T any](fn func() (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan Result[T], 1)}
	go func() {
		data, err := fn()
		t.done <- Result[T]{Data: data, Err: err}
	}()
	return t
}

// Wait blocks until the fetch completes and returns its result. Calling
// Wait more than once returns the same result.
func (t *Task[T]) Wait() Result[T] {
	result := <-t.done
	t.done <- result
	return result
}
