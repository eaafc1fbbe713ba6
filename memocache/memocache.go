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

// Package memocache provides a keyed memoizing cache over a fetch function of arity 0 or 1. It is
// the building block that a transform.Transformer uses to deduplicate external data fetches within
// one transformation batch: all concurrent callers that request the same cache key share one
// in-flight Task and the underlying fetch runs at most once per key until Clear.
package memocache

import (
	"context"
	"errors"
	"sync"

	"github.com/botobag/refract/concurrent"
)

// Fetch loads the value for an argument. Implementations are supplied by the caller and typically
// hit a data backend; memocache itself performs no I/O.
type Fetch interface {
	Fetch(ctx context.Context, arg interface{}) (interface{}, error)
}

// The FetchFunc type is an adapter to allow the use of ordinary functions as Fetch. If f is a
// function with the appropriate signature, FetchFunc(f) is a Fetch that calls f.
type FetchFunc func(ctx context.Context, arg interface{}) (interface{}, error)

// Fetch implements Fetch by simply calling f(ctx, arg).
func (f FetchFunc) Fetch(ctx context.Context, arg interface{}) (interface{}, error) {
	return f(ctx, arg)
}

// Config specifies the fetch function wrapped by a Cache and the way cache keys are derived from
// its argument.
type Config struct {
	// (Required) Fetch specifies the function whose results are memoized.
	Fetch Fetch

	// (Optional) KeyFields restricts cache-key derivation for object arguments (maps and structs)
	// to exactly the named top-level keys. When empty, all keys (or all exported struct fields) of
	// the argument participate. It has no effect on non-object arguments.
	KeyFields []string

	// (Optional) Runner for executing fetches. When nil, each fetch runs on its own goroutine.
	Runner concurrent.Executor
}

// A Cache memoizes calls to a fetch function keyed by a string derived from the call argument.
//
// Guarantees:
//
//  1. For a given key, the fetch is invoked at most once between clears.
//  2. Concurrent callers with the same key observe the exact same in-flight Task, not merely equal
//     values, so a fetch's side effects happen at most once.
//  3. A failed fetch is cached like a value; callers see the same error until Clear. There is no
//     automatic retry.
type Cache struct {
	config Config

	// tasks maps a derived cache key (string) to the *Task holding the in-flight or completed
	// result for that key.
	tasks sync.Map
}

var errMissingFetch = errors.New("memocache: fetch function is required to construct a Cache")

// New creates a Cache instance from given config.
func New(config Config) (*Cache, error) {
	if config.Fetch == nil {
		return nil, errMissingFetch
	}
	return &Cache{config: config}, nil
}

// Must is a helper that wraps a call to New and panics on error. It is intended for use in
// variable initializations where the config is statically known to be valid.
func Must(config Config) *Cache {
	cache, err := New(config)
	if err != nil {
		panic(err)
	}
	return cache
}

// Call looks up the cache entry for arg, creating it (and starting the fetch) when absent. The
// returned Task is shared by every caller that derives the same cache key; the fetch runs at most
// once per key per un-cleared window.
func (cache *Cache) Call(ctx context.Context, arg interface{}) *Task {
	return cache.call(ctx, cacheKeyFor(arg, cache.config.KeyFields), arg)
}

// CallNoArg is the 0-arity form of Call. All invocations share a single fixed cache slot, so a
// 0-arg cache holds at most one result at a time.
func (cache *Cache) CallNoArg(ctx context.Context) *Task {
	return cache.call(ctx, defaultCacheKey, nil)
}

func (cache *Cache) call(ctx context.Context, key string, arg interface{}) *Task {
	// Fast path: key already has a task.
	if t, found := cache.tasks.Load(key); found {
		return t.(*Task)
	}

	// Publish the task under the key before the fetch starts so concurrent callers for the same
	// key always join the same task.
	t, loaded := cache.tasks.LoadOrStore(key, newTask(cache, arg))
	task := t.(*Task)
	if !loaded {
		task.start(ctx, cache.config.Runner)
	}
	return task
}

// Peek returns the Task cached for the key derived from arg, or nil when no entry exists. It never
// starts a fetch.
func (cache *Cache) Peek(arg interface{}) *Task {
	if t, found := cache.tasks.Load(cacheKeyFor(arg, cache.config.KeyFields)); found {
		return t.(*Task)
	}
	return nil
}

// PeekNoArg is the 0-arity form of Peek.
func (cache *Cache) PeekNoArg() *Task {
	if t, found := cache.tasks.Load(defaultCacheKey); found {
		return t.(*Task)
	}
	return nil
}

// Clear removes all entries. A subsequent Call with any key will invoke the fetch again. In-flight
// fetches are unaffected; their tasks simply become unreachable from the cache.
func (cache *Cache) Clear() {
	tasks := &cache.tasks
	tasks.Range(func(key, _ interface{}) bool {
		tasks.Delete(key)
		return true
	})
}
