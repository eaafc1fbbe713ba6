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

// Package concurrent provides the executor contracts used by refract to run units of work off the
// calling goroutine. A memocache.Cache and a transform.Transformer both accept an optional
// Executor (their "Runner") to take over execution of fetches and include resolvers; when no
// Executor is given they fall back to plain goroutines.
package concurrent

import (
	"context"
	"errors"
	"time"
)

// Task represents an instance that can be executed by an Executor.
type Task interface {
	// Run performs actions to complete a Task. The return value would be sent to corresponding
	// TaskHandle which can be then accessed via calling AwaitResult.
	Run() (interface{}, error)
}

// The TaskFunc type is an adapter to allow the use of ordinary functions as a Task.
type TaskFunc func() (interface{}, error)

// TaskFunc implements Task.
var _ Task = (TaskFunc)(nil)

// Run implements Task. It calls f().
func (f TaskFunc) Run() (interface{}, error) {
	return f()
}

// Error values to be returned from AwaitResult and Submit.
var (
	// ErrTaskCancelled indicates the task is cancelled.
	ErrTaskCancelled = errors.New("task was cancelled")

	// ErrAwaitTaskResultTimeout indicates runs out of time to wait for result.
	ErrAwaitTaskResultTimeout = errors.New("timeout while waiting task result")

	// ErrExecutorShutdown indicates the task was submitted to an executor that has shut down.
	ErrExecutorShutdown = errors.New("executor has shut down")
)

// TaskHandle tracks progress of a Task and can be used to cancel execution and/or wait for
// completion.
type TaskHandle interface {
	// Cancel tries to cancel execution of the associated task. It only succeeds when the task
	// hasn't started running.
	Cancel() error

	// AwaitResult blocks caller until the underlying task completed or timeout. A non-positive
	// timeout waits indefinitely. Possible return values are:
	//
	//  1. (nil, ErrTaskCancelled): task was cancelled.
	//  2. (nil, ErrAwaitTaskResultTimeout)
	//  3. (any, any): the result returned from the Run method of corresponding task.
	AwaitResult(timeout time.Duration) (interface{}, error)
}

// executorScopeKey marks a context whose work runs on an Executor's worker.
type executorScopeKey struct{}

// WithExecutorScope returns a context recording that the work carrying it runs on one of the
// executor's workers. A task that submits more tasks to its own executor and blocks on their
// results can stall the pool (see WorkerPoolExecutorConfig.QueueSize); callers use
// InExecutorScope to detect that situation and run such work inline or on plain goroutines.
func WithExecutorScope(ctx context.Context, executor Executor) context.Context {
	return context.WithValue(ctx, executorScopeKey{}, executor)
}

// InExecutorScope reports whether the work carrying ctx already runs on the given executor.
func InExecutorScope(ctx context.Context, executor Executor) bool {
	scoped, _ := ctx.Value(executorScopeKey{}).(Executor)
	return scoped == executor
}

// Executor provides interfaces to manage and to execute tasks.
type Executor interface {
	// Shutdown shuts down the executor. Previously submitted tasks are executed but no new tasks
	// will be accepted. It is an no-op if the executor has already shut down. It returns a channel
	// which will receive a notification from the Executor when all remaining tasks have completed
	// after shutdown request.
	Shutdown() (terminated <-chan bool, err error)

	// Submit submits a task for execution. The method only arranges task for execution. The actual
	// execution may occur sometime later.
	Submit(task Task) (TaskHandle, error)
}
