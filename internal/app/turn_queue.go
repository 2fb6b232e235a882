package app

import (
	"context"
	"sync"
)

type queuedTurn struct {
	ctx context.Context
	in  TurnInput
}

// turnQueue runs turns of one session strictly in arrival order while
// different sessions proceed concurrently. A session has at most one drain
// goroutine; its map entry exists exactly while that goroutine runs.
type turnQueue struct {
	mu      sync.Mutex
	pending map[string][]queuedTurn
	wg      sync.WaitGroup
	run     func(ctx context.Context, in TurnInput)
}

func newTurnQueue(run func(ctx context.Context, in TurnInput)) *turnQueue {
	return &turnQueue{pending: make(map[string][]queuedTurn), run: run}
}

func (q *turnQueue) push(ctx context.Context, in TurnInput) {
	q.mu.Lock()
	defer q.mu.Unlock()

	list, active := q.pending[in.SessionKey]
	q.pending[in.SessionKey] = append(list, queuedTurn{ctx: ctx, in: in})
	if !active {
		q.wg.Add(1)
		go q.drain(in.SessionKey)
	}
}

func (q *turnQueue) drain(key string) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		list := q.pending[key]
		if len(list) == 0 {
			delete(q.pending, key)
			q.mu.Unlock()
			return
		}
		next := list[0]
		q.pending[key] = list[1:]
		q.mu.Unlock()

		q.run(next.ctx, next.in)
	}
}

// active returns the number of sessions with queued or running turns.
func (q *turnQueue) active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *turnQueue) wait() {
	q.wg.Wait()
}
