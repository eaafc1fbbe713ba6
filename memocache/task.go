/**
 * Copyright (c) 2019, The Refract Authors.
 *
 * Permission to use, copy, modify, and/or distribute this software for any
 * purpose with or without fee is hereby granted, provided that the above
 * copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
 * WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
 * MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR
 * ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
 * WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN
 * ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF
 * OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package memocache

import (
	"context"
	"sync"

	"github.com/botobag/refract/concurrent"
)

// Task holds the in-flight or completed result of one fetch invocation. Every caller that hits the
// same cache key receives the same Task instance; a Task is completed exactly once.
type Task struct {
	cache *Cache
	arg   interface{}

	// once guards the fetch so that it is invoked at most once even if the task is started through
	// both a Runner and a direct goroutine.
	once sync.Once

	// done is closed when the fetch completed and value/err became readable.
	done chan struct{}

	value interface{}
	err   error
}

func newTask(cache *Cache, arg interface{}) *Task {
	return &Task{
		cache: cache,
		arg:   arg,
		done:  make(chan struct{}),
	}
}

// start begins execution of the fetch: on the given runner when one is provided, otherwise on a
// fresh goroutine. It is called exactly once, by the caller that won the LoadOrStore race.
func (t *Task) start(ctx context.Context, runner concurrent.Executor) {
	if runner == nil || concurrent.InExecutorScope(ctx, runner) {
		// Either no runner, or the calling work already occupies one of the runner's workers.
		// Submitting the fetch there and blocking in Result could stall the pool.
		go t.run(ctx)
		return
	}

	ctx = concurrent.WithExecutorScope(ctx, runner)
	if _, err := runner.Submit(concurrent.TaskFunc(func() (interface{}, error) {
		t.run(ctx)
		return nil, nil
	})); err != nil {
		// The runner refused the task (e.g., it has shut down). Fall back to a goroutine rather
		// than leaving every caller of this key blocked forever.
		go t.run(ctx)
	}
}

func (t *Task) run(ctx context.Context) {
	t.once.Do(func() {
		t.value, t.err = t.cache.config.Fetch.Fetch(ctx, t.arg)
		close(t.done)
	})
}

// Result blocks until the fetch completed and returns its value or error. Multiple callers may
// block on the same task; all observe the identical result.
func (t *Task) Result() (interface{}, error) {
	<-t.done
	return t.value, t.err
}

// Completed reports whether the fetch has finished.
func (t *Task) Completed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
