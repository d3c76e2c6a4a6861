package pipeline

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Settled is the outcome of one task: exactly one of Value or Err is meaningful.
type Settled[T any] struct {
	Value T
	Err   error
}

// RunLimited runs every task with at most limit of them in flight and returns once all
// have settled. Tasks are started in slice order; results are indexed by task position,
// not completion order. A failing or panicking task never stops its siblings.
func RunLimited[T any](limit int, tasks []func() (T, error)) []Settled[T] {
	if limit < 1 {
		limit = 1
	}
	results := make([]Settled[T], len(tasks))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, task := range tasks {
		g.Go(func() error {
			results[i] = settle(task)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func settle[T any](task func() (T, error)) (s Settled[T]) {
	defer func() {
		if r := recover(); r != nil {
			s = Settled[T]{Err: fmt.Errorf("task panicked: %v", r)}
		}
	}()
	v, err := task()
	return Settled[T]{Value: v, Err: err}
}
