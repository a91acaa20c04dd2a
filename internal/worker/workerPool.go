package worker

import (
	"sync"
)

type Task interface {
	Execute()
}

// Pool runs tasks on a resizable set of workers. Tasks execute inside
// the worker goroutine, so the pool size bounds concurrency.
type Pool struct {
	mu    sync.Mutex
	size  int
	tasks chan Task
	kill  chan struct{}
	wg    sync.WaitGroup
}

func NewPool(speed int, queue int) *Pool {
	pool := &Pool{
		tasks: make(chan Task, queue),
		kill:  make(chan struct{}),
	}
	pool.Resize(speed)
	return pool
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			task.Execute()
		case <-p.kill:
			return
		}
	}
}

func (p *Pool) Resize(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.size < n {
		p.size++
		p.wg.Add(1)
		go p.worker()
	}
	for p.size > n {
		p.size--
		p.kill <- struct{}{}
	}
}

// Close stops intake. Workers drain the queue and exit.
func (p *Pool) Close() {
	close(p.tasks)
}

func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) Exec(task Task) {
	p.tasks <- task
}
