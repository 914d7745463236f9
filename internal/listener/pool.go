package listener

import (
	"context"
	"hash/fnv"
	"sync"
)

// job is one unit queued to a worker. The result channel carries the
// outcome back to the submitter so offset commits stay tied to handling.
type job struct {
	ctx    context.Context
	run    func(context.Context) error
	result chan error
}

// keyedPool runs N single-goroutine workers. Jobs submitted under the same
// key always land on the same worker, so they execute in submission order;
// jobs under distinct keys proceed concurrently. This is what keeps
// reconciles for one prisoner serialised without locking the whole stream.
type keyedPool struct {
	queues []chan job
	wg     sync.WaitGroup
	once   sync.Once
}

func newKeyedPool(workers, queueDepth int) *keyedPool {
	if workers < 1 {
		workers = 1
	}
	p := &keyedPool{queues: make([]chan job, workers)}
	for i := range p.queues {
		queue := make(chan job, queueDepth)
		p.queues[i] = queue
		p.wg.Add(1)
		go p.work(queue)
	}
	return p
}

func (p *keyedPool) work(queue <-chan job) {
	defer p.wg.Done()
	for j := range queue {
		j.result <- j.run(j.ctx)
	}
}

// Enqueue queues the function on the worker owning the key and returns the
// channel its result will arrive on. Calls from one goroutine enqueue in
// call order, which is what gives same-key jobs their ordering guarantee.
func (p *keyedPool) Enqueue(ctx context.Context, key string, run func(context.Context) error) (<-chan error, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	queue := p.queues[int(h.Sum32())%len(p.queues)]

	j := job{ctx: ctx, run: run, result: make(chan error, 1)}
	select {
	case queue <- j:
		return j.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Submit queues the function on the worker owning the key and waits for it
// to finish.
func (p *keyedPool) Submit(ctx context.Context, key string, run func(context.Context) error) error {
	result, err := p.Enqueue(ctx, key, run)
	if err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the workers after their queues drain.
func (p *keyedPool) Close() {
	p.once.Do(func() {
		for _, queue := range p.queues {
			close(queue)
		}
	})
	p.wg.Wait()
}
