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

package concurrent

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

//===----------------------------------------------------------------------------------------====//
// WorkerPoolExecutorConfig
//===----------------------------------------------------------------------------------------====//

// WorkerPoolExecutorConfig contains options to configure a WorkerPoolExecutor.
type WorkerPoolExecutorConfig struct {
	// The number of workers in the pool (required, must be greater than 0)
	PoolSize uint32

	// The capacity of the task queue. Submit blocks when the queue is full. If not set, 1024 is
	// used. Note that a task running in the pool must not submit to the same pool and block on the
	// submitted task's result; with all workers doing so the pool stalls.
	QueueSize uint32
}

// Validate verifies config values.
func (config *WorkerPoolExecutorConfig) Validate() error {
	if config.PoolSize == 0 {
		return errors.New(`WorkerPoolExecutor: PoolSize must be a non-zero value which specifies ` +
			`the number of workers to be created by the executor. If you have no idea, try to set ` +
			`the value to uint32(runtime.GOMAXPROCS(-1)).`)
	}
	return nil
}

//===----------------------------------------------------------------------------------------====//
// workerPoolTask
//===----------------------------------------------------------------------------------------====//

// Enumeration of workerPoolTask states; transitions are one-way and performed with CAS.
const (
	workerPoolTaskPending int32 = iota
	workerPoolTaskRunning
	workerPoolTaskCompleted
	workerPoolTaskCancelled
)

// workerPoolTask implements TaskHandle for Task executed in a WorkerPoolExecutor.
type workerPoolTask struct {
	Task

	// state holds one of the workerPoolTask state constants.
	state int32

	// done is closed when the task reaches a final state (completed or cancelled).
	done chan struct{}

	// Return values from calling the Run method in Task; only written before done is closed and
	// only read after.
	result interface{}
	err    error
}

var (
	_ Task       = (*workerPoolTask)(nil)
	_ TaskHandle = (*workerPoolTask)(nil)
)

func newWorkerPoolTask(task Task) *workerPoolTask {
	return &workerPoolTask{
		Task: task,
		done: make(chan struct{}),
	}
}

// run executes the underlying task unless it has been cancelled.
func (t *workerPoolTask) run() {
	if !atomic.CompareAndSwapInt32(&t.state, workerPoolTaskPending, workerPoolTaskRunning) {
		// Task was cancelled before a worker picked it up.
		return
	}

	t.result, t.err = t.Task.Run()

	atomic.StoreInt32(&t.state, workerPoolTaskCompleted)
	close(t.done)
}

// Cancel implements TaskHandle.
func (t *workerPoolTask) Cancel() error {
	if !atomic.CompareAndSwapInt32(&t.state, workerPoolTaskPending, workerPoolTaskCancelled) {
		return fmt.Errorf("task can no longer be cancelled")
	}
	t.err = ErrTaskCancelled
	close(t.done)
	return nil
}

// AwaitResult implements TaskHandle.
func (t *workerPoolTask) AwaitResult(timeout time.Duration) (interface{}, error) {
	if timeout <= 0 {
		<-t.done
		return t.result, t.err
	}

	select {
	case <-t.done:
		return t.result, t.err
	case <-time.After(timeout):
		return nil, ErrAwaitTaskResultTimeout
	}
}

//===----------------------------------------------------------------------------------------====//
// WorkerPoolExecutor
//===----------------------------------------------------------------------------------------====//

// WorkerPoolExecutor is an Executor backed by a fixed-size pool of worker goroutines fed from a
// bounded queue. Workers are started eagerly at construction and exit when the executor shuts down
// and the queue drains.
type WorkerPoolExecutor struct {
	// Guards shutdown against concurrent Submit; Submit holds the read side so the task queue is
	// never closed while a send is in flight.
	mutex    sync.RWMutex
	shutdown bool

	tasks chan *workerPoolTask

	// workers signals termination when all workers returned.
	workers sync.WaitGroup

	// terminated is closed when all workers returned; every Shutdown caller observes it.
	terminated chan bool
}

var _ Executor = (*WorkerPoolExecutor)(nil)

// NewWorkerPoolExecutor creates a WorkerPoolExecutor from given config and starts its workers.
func NewWorkerPoolExecutor(config WorkerPoolExecutorConfig) (*WorkerPoolExecutor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	queueSize := config.QueueSize
	if queueSize == 0 {
		queueSize = 1024
	}

	executor := &WorkerPoolExecutor{
		tasks:      make(chan *workerPoolTask, queueSize),
		terminated: make(chan bool),
	}

	numWorkers := int(config.PoolSize)
	executor.workers.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go executor.worker()
	}

	go func() {
		executor.workers.Wait()
		close(executor.terminated)
	}()

	return executor, nil
}

func (executor *WorkerPoolExecutor) worker() {
	defer executor.workers.Done()
	for task := range executor.tasks {
		task.run()
	}
}

// Submit implements Executor.
func (executor *WorkerPoolExecutor) Submit(task Task) (TaskHandle, error) {
	mutex := &executor.mutex
	mutex.RLock()
	defer mutex.RUnlock()

	if executor.shutdown {
		return nil, ErrExecutorShutdown
	}

	t := newWorkerPoolTask(task)
	executor.tasks <- t
	return t, nil
}

// Shutdown implements Executor.
func (executor *WorkerPoolExecutor) Shutdown() (<-chan bool, error) {
	mutex := &executor.mutex
	mutex.Lock()
	if !executor.shutdown {
		executor.shutdown = true
		close(executor.tasks)
	}
	mutex.Unlock()

	return executor.terminated, nil
}
