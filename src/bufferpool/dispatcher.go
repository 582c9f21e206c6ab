package bufferpool

import "sync"

// dispatcher is a fixed-size worker pool. Jobs are queued on a buffered
// channel and picked up by whichever worker is free; there is no
// per-page affinity, so a page-replace task and a cleanup task for
// unrelated pages run fully concurrently.
type dispatcher struct {
	jobs chan func()
	quit chan struct{}
	wg   sync.WaitGroup
}

func newDispatcher(workers int) *dispatcher {
	d := &dispatcher{
		jobs: make(chan func(), 256),
		quit: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job, ok := <-d.jobs:
			if !ok {
				return
			}
			job()
		case <-d.quit:
			return
		}
	}
}

func (d *dispatcher) submit(job func()) {
	select {
	case d.jobs <- job:
	case <-d.quit:
	}
}

func (d *dispatcher) shutdown() {
	close(d.quit)
	d.wg.Wait()
}
