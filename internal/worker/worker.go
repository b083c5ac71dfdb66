package worker

import "sync"

// Task is a queued unit of work, here typically a bcrypt hashing job.
type Task func()

// Pool bounds concurrent CPU-heavy work to a fixed number of goroutines.
// Password hashing submits through it so bcrypt never runs unbounded per request.
type Pool interface {
	Submit(Task)
	Stop()
}

// NewPool creates a pool with n workers. n<=0 defaults to 1.
func NewPool(n int) Pool {
	if n <= 0 {
		n = 1
	}
	p := &pool{tasks: make(chan Task)}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				if task != nil {
					task()
				}
			}
		}()
	}
	return p
}

type pool struct {
	tasks chan Task
	wg    sync.WaitGroup
}

func (p *pool) Submit(t Task) {
	p.tasks <- t
}

// Stop drains queued tasks and waits for the workers to exit.
func (p *pool) Stop() {
	close(p.tasks)
	p.wg.Wait()
}
