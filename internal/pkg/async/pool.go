// Package async runs independent tasks on a bounded set of workers.
package async

import (
	"context"
	"sync"
)

// Task is one unit of work. Index identifies its slot in the result slice.
type Task[T any] struct {
	Index   int
	Execute func(ctx context.Context) (T, error)
}

type Result[T any] struct {
	Index int
	Data  T
	Err   error
}

// Pool executes tasks with at most workerCount running at once.
type Pool[T any] struct {
	workerCount int
}

func NewPool[T any](workerCount int) *Pool[T] {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool[T]{workerCount: workerCount}
}

func (p *Pool[T]) worker(ctx context.Context, wg *sync.WaitGroup, tasks <-chan Task[T], results chan<- Result[T]) {
	defer wg.Done()
	for {
		select {
		case task, ok := <-tasks:
			if !ok {
				return
			}
			data, err := task.Execute(ctx)
			select {
			case results <- Result[T]{Index: task.Index, Data: data, Err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Execute runs tasks and returns their results ordered by Index. Task
// indexes must be unique and within [0, len(tasks)). When ctx is cancelled
// before every task reports, the missing slots carry ctx.Err().
func (p *Pool[T]) Execute(ctx context.Context, tasks []Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))
	if len(tasks) == 0 {
		return results
	}

	taskCh := make(chan Task[T])
	resultCh := make(chan Result[T], len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < min(p.workerCount, len(tasks)); i++ {
		wg.Add(1)
		go p.worker(ctx, &wg, taskCh, resultCh)
	}

	go func() {
		defer close(taskCh)
		for _, task := range tasks {
			select {
			case taskCh <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	done := make([]bool, len(tasks))
	for received := 0; received < len(tasks); received++ {
		select {
		case result := <-resultCh:
			results[result.Index] = result
			done[result.Index] = true
		case <-ctx.Done():
			wg.Wait()
			for i := range results {
				if !done[i] {
					results[i] = Result[T]{Index: i, Err: ctx.Err()}
				}
			}
			return results
		}
	}

	wg.Wait()
	return results
}
