// Package async runs independent fetches concurrently and collects their results by name.
package async

import (
	"context"
	"fmt"
	"sync"
)

type Task struct {
	Name    string
	Execute func(ctx context.Context) (interface{}, error)
}

type Result struct {
	Name string
	Data interface{}
	Err  error
}

// Pool bounds how many tasks run at once. A Pool may be reused across calls.
type Pool struct {
	workerCount int
}

func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{workerCount: workerCount}
}

func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case task, ok := <-tasks:
			if !ok {
				return
			}
			results <- run(ctx, task)
		case <-ctx.Done():
			return
		}
	}
}

// run executes a task, turning a panic into an error result.
func run(ctx context.Context, task Task) (result Result) {
	result.Name = task.Name
	defer func() {
		if r := recover(); r != nil {
			result.Data = nil
			result.Err = fmt.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()
	result.Data, result.Err = task.Execute(ctx)
	return result
}

// Execute runs tasks and returns their results keyed by task name.
// Tasks that did not finish before ctx is done are reported with ctx.Err().
func (p *Pool) Execute(ctx context.Context, tasks []Task) map[string]Result {
	var wg sync.WaitGroup
	results := make(map[string]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	taskCh := make(chan Task)
	resultCh := make(chan Result, len(tasks))

	workers := p.workerCount
	if workers > len(tasks) {
		workers = len(tasks)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go p.worker(ctx, taskCh, resultCh, &wg)
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

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for result := range resultCh {
		results[result.Name] = result
	}

	for _, task := range tasks {
		if _, ok := results[task.Name]; !ok {
			err := ctx.Err()
			if err == nil {
				err = fmt.Errorf("task %s did not run", task.Name)
			}
			results[task.Name] = Result{Name: task.Name, Err: err}
		}
	}

	return results
}
