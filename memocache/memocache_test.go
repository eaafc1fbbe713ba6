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

package memocache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/botobag/refract/concurrent"
	"github.com/botobag/refract/memocache"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// fetchLogger records the arguments that reached the underlying fetch so tests can count
// invocations.
type fetchLogger struct {
	// mutex that guards fetchCalls
	fetchCallsMutex sync.Mutex

	// arguments that have been sent to the fetch
	fetchCalls []interface{}
}

func (logger *fetchLogger) FetchCalls() []interface{} {
	mutex := &logger.fetchCallsMutex
	mutex.Lock()
	defer mutex.Unlock()
	return append([]interface{}(nil), logger.fetchCalls...)
}

func (logger *fetchLogger) NumFetchCalls() int {
	mutex := &logger.fetchCallsMutex
	mutex.Lock()
	defer mutex.Unlock()
	return len(logger.fetchCalls)
}

func (logger *fetchLogger) Log(arg interface{}) {
	mutex := &logger.fetchCallsMutex
	mutex.Lock()
	logger.fetchCalls = append(logger.fetchCalls, arg)
	mutex.Unlock()
}

// identityFetch implements memocache.Fetch which simply returns the argument as the fetched value.
type identityFetch struct {
	logger fetchLogger
}

func (fetch *identityFetch) Fetch(ctx context.Context, arg interface{}) (interface{}, error) {
	fetch.logger.Log(arg)
	return arg, nil
}

func newIdentityCache(keyFields ...string) (*memocache.Cache, *identityFetch) {
	fetch := &identityFetch{}
	cache, err := memocache.New(memocache.Config{
		Fetch:     fetch,
		KeyFields: keyFields,
	})
	Expect(err).ShouldNot(HaveOccurred())
	return cache, fetch
}

var _ = Describe("Cache", func() {
	ctx := context.Background()

	It("requires a fetch function", func() {
		_, err := memocache.New(memocache.Config{})
		Expect(err).Should(HaveOccurred())
	})

	It("memoizes a really really simple fetch", func() {
		cache, fetch := newIdentityCache()

		Expect(cache.Call(ctx, 1).Result()).Should(Equal(1))
		Expect(cache.Call(ctx, 1).Result()).Should(Equal(1))
		Expect(cache.Call(ctx, 2).Result()).Should(Equal(2))

		Expect(fetch.logger.FetchCalls()).Should(Equal([]interface{}{1, 2}))
	})

	It("returns the same task instance for repeated calls with one key", func() {
		cache, _ := newIdentityCache()

		task := cache.Call(ctx, "a")
		Expect(cache.Call(ctx, "a")).Should(BeIdenticalTo(task))
	})

	It("invokes the fetch once for concurrent calls with the same key", func() {
		release := make(chan struct{})
		var numCalls int32
		callsMutex := sync.Mutex{}

		cache, err := memocache.New(memocache.Config{
			Fetch: memocache.FetchFunc(func(ctx context.Context, arg interface{}) (interface{}, error) {
				callsMutex.Lock()
				numCalls++
				callsMutex.Unlock()
				<-release
				return arg, nil
			}),
		})
		Expect(err).ShouldNot(HaveOccurred())

		const numCallers = 16
		tasks := make([]*memocache.Task, numCallers)
		var wg sync.WaitGroup
		wg.Add(numCallers)
		for i := 0; i < numCallers; i++ {
			go func(i int) {
				defer wg.Done()
				tasks[i] = cache.Call(ctx, "user:1")
			}(i)
		}
		wg.Wait()
		close(release)

		for _, task := range tasks {
			Expect(task).Should(BeIdenticalTo(tasks[0]))
			Expect(task.Result()).Should(Equal("user:1"))
		}

		callsMutex.Lock()
		defer callsMutex.Unlock()
		Expect(numCalls).Should(Equal(int32(1)))
	})

	It("hits the same entry for object arguments regardless of key order", func() {
		cache, fetch := newIdentityCache()

		first := cache.Call(ctx, map[string]interface{}{"id": 1, "role": "admin"})
		second := cache.Call(ctx, map[string]interface{}{"role": "admin", "id": 1})

		Expect(second).Should(BeIdenticalTo(first))

		_, err := first.Result()
		Expect(err).ShouldNot(HaveOccurred())
		Expect(fetch.logger.NumFetchCalls()).Should(Equal(1))
	})

	It("restricts object keys to the configured fields", func() {
		cache, fetch := newIdentityCache("id")

		first := cache.Call(ctx, map[string]interface{}{"id": 1, "name": "John"})
		second := cache.Call(ctx, map[string]interface{}{"id": 1, "name": "Jane"})
		third := cache.Call(ctx, map[string]interface{}{"id": 2, "name": "John"})

		Expect(second).Should(BeIdenticalTo(first))
		Expect(third).ShouldNot(BeIdenticalTo(first))

		for _, task := range []*memocache.Task{first, third} {
			_, err := task.Result()
			Expect(err).ShouldNot(HaveOccurred())
		}
		Expect(fetch.logger.NumFetchCalls()).Should(Equal(2))
	})

	It("accepts struct arguments", func() {
		type user struct {
			ID   int
			Name string
		}

		cache, fetch := newIdentityCache("ID")

		first := cache.Call(ctx, user{ID: 1, Name: "John"})
		second := cache.Call(ctx, user{ID: 1, Name: "Jane"})

		Expect(second).Should(BeIdenticalTo(first))

		_, err := first.Result()
		Expect(err).ShouldNot(HaveOccurred())
		Expect(fetch.logger.NumFetchCalls()).Should(Equal(1))
	})

	It("distinguishes edge-case arguments", func() {
		cache, fetch := newIdentityCache()

		tasks := []*memocache.Task{
			cache.Call(ctx, nil),
			cache.Call(ctx, ""),
			cache.Call(ctx, 0),
			cache.Call(ctx, -1),
			cache.Call(ctx, "-1"),
			cache.CallNoArg(ctx),
		}

		for i, task := range tasks {
			for j := i + 1; j < len(tasks); j++ {
				Expect(task).ShouldNot(BeIdenticalTo(tasks[j]), fmt.Sprintf("tasks %d and %d collided", i, j))
			}
		}

		// The 0-arg slot coalesces with itself.
		Expect(cache.CallNoArg(ctx)).Should(BeIdenticalTo(tasks[len(tasks)-1]))

		for _, task := range tasks {
			_, err := task.Result()
			Expect(err).ShouldNot(HaveOccurred())
		}
		Expect(fetch.logger.NumFetchCalls()).Should(Equal(len(tasks)))
	})

	It("refetches after clear", func() {
		cache, fetch := newIdentityCache()

		Expect(cache.Call(ctx, "a").Result()).Should(Equal("a"))
		cache.Clear()
		Expect(cache.Call(ctx, "a").Result()).Should(Equal("a"))

		Expect(fetch.logger.NumFetchCalls()).Should(Equal(2))
	})

	It("treats repeated clears as idempotent", func() {
		cache, fetch := newIdentityCache()

		Expect(cache.Call(ctx, "a").Result()).Should(Equal("a"))
		cache.Clear()
		cache.Clear()
		Expect(cache.Call(ctx, "a").Result()).Should(Equal("a"))

		Expect(fetch.logger.NumFetchCalls()).Should(Equal(2))
	})

	It("caches failed fetches until clear", func() {
		fetchErr := errors.New("backend exploded")
		var numCalls int

		cache, err := memocache.New(memocache.Config{
			Fetch: memocache.FetchFunc(func(ctx context.Context, arg interface{}) (interface{}, error) {
				numCalls++
				return nil, fetchErr
			}),
		})
		Expect(err).ShouldNot(HaveOccurred())

		_, err = cache.Call(ctx, "a").Result()
		Expect(err).Should(MatchError(fetchErr))

		// Same cached rejection; no retry.
		_, err = cache.Call(ctx, "a").Result()
		Expect(err).Should(MatchError(fetchErr))
		Expect(numCalls).Should(Equal(1))

		cache.Clear()
		_, err = cache.Call(ctx, "a").Result()
		Expect(err).Should(MatchError(fetchErr))
		Expect(numCalls).Should(Equal(2))
	})

	It("peeks without fetching", func() {
		cache, fetch := newIdentityCache()

		Expect(cache.Peek("a")).Should(BeNil())
		Expect(cache.PeekNoArg()).Should(BeNil())
		Expect(fetch.logger.NumFetchCalls()).Should(BeZero())

		task := cache.Call(ctx, "a")
		Expect(cache.Peek("a")).Should(BeIdenticalTo(task))
	})

	It("runs fetches on a supplied runner", func() {
		executor, err := concurrent.NewWorkerPoolExecutor(concurrent.WorkerPoolExecutorConfig{
			PoolSize: 2,
		})
		Expect(err).ShouldNot(HaveOccurred())

		fetch := &identityFetch{}
		cache, err := memocache.New(memocache.Config{
			Fetch:  fetch,
			Runner: executor,
		})
		Expect(err).ShouldNot(HaveOccurred())

		Expect(cache.Call(ctx, "a").Result()).Should(Equal("a"))
		Expect(cache.Call(ctx, "b").Result()).Should(Equal("b"))
		Expect(fetch.logger.NumFetchCalls()).Should(Equal(2))

		terminated, err := executor.Shutdown()
		Expect(err).ShouldNot(HaveOccurred())
		<-terminated
	})
})
