package elevassigner

import (
	"context"
	"sync"
	"time"

	"elevdispatch/common"
)

// RequestQueue is an unbounded FIFO. Push never blocks; Poll waits on a
// wake-up channel without holding the lock.
type RequestQueue struct {
	mu    sync.Mutex
	items []common.Request
	wake  chan struct{}
}

func NewRequestQueue() *RequestQueue {
	return &RequestQueue{wake: make(chan struct{}, 1)}
}

func (q *RequestQueue) Push(r common.Request) {
	q.mu.Lock()
	q.items = append(q.items, r)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *RequestQueue) tryPop() (common.Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return common.Request{}, false
	}
	r := q.items[0]
	q.items[0] = common.Request{}
	q.items = q.items[1:]
	return r, true
}

// Poll returns the oldest request, waiting at most timeout for one.
func (q *RequestQueue) Poll(ctx context.Context, timeout time.Duration) (common.Request, bool) {
	if r, ok := q.tryPop(); ok {
		return r, true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return common.Request{}, false
		case <-t.C:
			return q.tryPop()
		case <-q.wake:
			if r, ok := q.tryPop(); ok {
				return r, true
			}
		}
	}
}

func (q *RequestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
