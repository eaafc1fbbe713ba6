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

package transform_test

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/botobag/refract/memocache"
	"github.com/botobag/refract/transform"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Nested transformers", func() {
	ctx := context.Background()

	Describe("NestedFactory", func() {
		It("defers construction until first use and reuses the instance", func() {
			var numCreates int32

			transformer, err := transform.New(transform.Config{
				Projector: transform.ProjectFunc(projectUser),
				Nested: map[string]transform.Nested{
					"profile": transform.NestedFactory(transform.FactoryFunc(
						func() (*transform.Transformer, error) {
							atomic.AddInt32(&numCreates, 1)
							return transform.New(transform.Config{
								Projector: transform.ProjectFunc(projectUser),
							})
						})),
				},
			})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(atomic.LoadInt32(&numCreates)).Should(Equal(int32(0)))

			profile, err := transformer.Nested(ctx, "profile")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(profile).ShouldNot(BeNil())

			again, err := transformer.Nested(ctx, "profile")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(again).Should(BeIdenticalTo(profile))
			Expect(atomic.LoadInt32(&numCreates)).Should(Equal(int32(1)))
		})

		It("rejects a factory returning a nil instance", func() {
			nested := transform.NestedFactory(transform.FactoryFunc(
				func() (*transform.Transformer, error) {
					return nil, nil
				}))

			_, err := nested.Get(ctx)
			Expect(err).Should(HaveOccurred())
			Expect(err.Error()).Should(ContainSubstring("nil instance"))
		})

		It("memoizes a failing factory", func() {
			var numCreates int32
			nested := transform.NestedFactory(transform.FactoryFunc(
				func() (*transform.Transformer, error) {
					atomic.AddInt32(&numCreates, 1)
					return nil, errors.New("cannot construct")
				}))

			_, err := nested.Get(ctx)
			Expect(err).Should(MatchError("cannot construct"))
			_, err = nested.Get(ctx)
			Expect(err).Should(MatchError("cannot construct"))
			Expect(atomic.LoadInt32(&numCreates)).Should(Equal(int32(1)))
		})
	})

	It("rejects an unknown nested reference name", func() {
		transformer, err := transform.New(transform.Config{
			Projector: transform.ProjectFunc(projectUser),
		})
		Expect(err).ShouldNot(HaveOccurred())

		_, err = transformer.Nested(ctx, "missing")
		Expect(err).Should(HaveOccurred())
	})

	It("shares the outermost cache window with transforms run by resolvers", func() {
		child, fetcher := newUserTransformer(transform.ClearCacheOnTransform, nil)

		parent, err := transform.New(transform.Config{
			Projector: transform.ProjectFunc(projectUser),
			Resolvers: map[string]transform.Resolver{
				"profile": transform.ResolveFunc(
					func(ctx context.Context, input interface{}, props interface{}, forwarded []string) (interface{}, error) {
						// Run the child twice; within the parent's call the second run hits the
						// child's cache.
						childParams := transform.Params{Input: input, Includes: []string{"avatar"}}
						if _, err := child.Transform(ctx, childParams); err != nil {
							return nil, err
						}
						return child.Transform(ctx, childParams)
					}),
			},
			Nested: map[string]transform.Nested{
				"user": transform.NestedTransformer(child),
			},
		})
		Expect(err).ShouldNot(HaveOccurred())

		_, err = parent.Transform(ctx, transform.Params{
			Input:    alice,
			Includes: []string{"profile"},
		})
		Expect(err).ShouldNot(HaveOccurred())
		Expect(fetcher.NumCalls()).Should(Equal(1))

		// The parent's completion cascaded the clear into the child.
		_, err = parent.Transform(ctx, transform.Params{
			Input:    alice,
			Includes: []string{"profile"},
		})
		Expect(err).ShouldNot(HaveOccurred())
		Expect(fetcher.NumCalls()).Should(Equal(2))
	})
})

var _ = Describe("ClearCache", func() {
	ctx := context.Background()

	newCountingCache := func() (*memocache.Cache, *avatarFetcher) {
		fetcher := &avatarFetcher{}
		return memocache.Must(memocache.Config{Fetch: fetcher}), fetcher
	}

	It("terminates on cyclic transformer graphs and clears every member", func() {
		cacheA, fetcherA := newCountingCache()
		cacheB, fetcherB := newCountingCache()

		var b *transform.Transformer

		a, err := transform.New(transform.Config{
			Projector:   transform.ProjectFunc(projectUser),
			Caches:      map[string]*memocache.Cache{"avatars": cacheA},
			CachePolicy: transform.RetainCacheOnTransform,
			Nested: map[string]transform.Nested{
				"b": transform.NestedFactory(transform.FactoryFunc(
					func() (*transform.Transformer, error) {
						return b, nil
					})),
			},
		})
		Expect(err).ShouldNot(HaveOccurred())

		b, err = transform.New(transform.Config{
			Projector:   transform.ProjectFunc(projectUser),
			Caches:      map[string]*memocache.Cache{"avatars": cacheB},
			CachePolicy: transform.RetainCacheOnTransform,
			Nested: map[string]transform.Nested{
				"a": transform.NestedTransformer(a),
			},
		})
		Expect(err).ShouldNot(HaveOccurred())

		// Construct a's lazy reference to b so the cascade can reach it.
		nestedB, err := a.Nested(ctx, "b")
		Expect(err).ShouldNot(HaveOccurred())
		Expect(nestedB).Should(BeIdenticalTo(b))

		Expect(cacheA.Call(ctx, 1).Result()).ShouldNot(BeNil())
		Expect(cacheB.Call(ctx, 1).Result()).ShouldNot(BeNil())
		Expect(fetcherA.NumCalls()).Should(Equal(1))
		Expect(fetcherB.NumCalls()).Should(Equal(1))

		a.ClearCache(ctx)

		Expect(cacheA.Call(ctx, 1).Result()).ShouldNot(BeNil())
		Expect(cacheB.Call(ctx, 1).Result()).ShouldNot(BeNil())
		Expect(fetcherA.NumCalls()).Should(Equal(2))
		Expect(fetcherB.NumCalls()).Should(Equal(2))
	})

	It("is idempotent", func() {
		cache, fetcher := newCountingCache()

		transformer, err := transform.New(transform.Config{
			Projector: transform.ProjectFunc(projectUser),
			Caches:    map[string]*memocache.Cache{"avatars": cache},
		})
		Expect(err).ShouldNot(HaveOccurred())

		transformer.ClearCache(ctx)
		transformer.ClearCache(ctx)

		Expect(cache.Call(ctx, 1).Result()).ShouldNot(BeNil())
		Expect(fetcher.NumCalls()).Should(Equal(1))
	})

	It("skips lazy references that were never constructed", func() {
		var numCreates int32

		transformer, err := transform.New(transform.Config{
			Projector: transform.ProjectFunc(projectUser),
			Nested: map[string]transform.Nested{
				"profile": transform.NestedFactory(transform.FactoryFunc(
					func() (*transform.Transformer, error) {
						atomic.AddInt32(&numCreates, 1)
						return transform.New(transform.Config{
							Projector: transform.ProjectFunc(projectUser),
						})
					})),
			},
		})
		Expect(err).ShouldNot(HaveOccurred())

		transformer.ClearCache(ctx)
		Expect(atomic.LoadInt32(&numCreates)).Should(Equal(int32(0)))
	})

	It("does not wait for an in-flight factory construction", func() {
		enterFactory := make(chan struct{})
		release := make(chan struct{})

		transformer, err := transform.New(transform.Config{
			Projector: transform.ProjectFunc(projectUser),
			Nested: map[string]transform.Nested{
				"profile": transform.NestedFactory(transform.FactoryFunc(
					func() (*transform.Transformer, error) {
						close(enterFactory)
						<-release
						return transform.New(transform.Config{
							Projector: transform.ProjectFunc(projectUser),
						})
					})),
			},
		})
		Expect(err).ShouldNot(HaveOccurred())

		go func() {
			_, _ = transformer.Nested(ctx, "profile")
		}()
		<-enterFactory

		// The clear must return while the factory is still blocked.
		cleared := make(chan struct{})
		go func() {
			transformer.ClearCache(ctx)
			close(cleared)
		}()
		Eventually(cleared).Should(BeClosed())

		close(release)
	})

	It("skips lazy references whose construction failed", func() {
		transformer, err := transform.New(transform.Config{
			Projector: transform.ProjectFunc(projectUser),
			Nested: map[string]transform.Nested{
				"profile": transform.NestedFactory(transform.FactoryFunc(
					func() (*transform.Transformer, error) {
						return nil, errors.New("cannot construct")
					})),
			},
		})
		Expect(err).ShouldNot(HaveOccurred())

		_, err = transformer.Nested(ctx, "profile")
		Expect(err).Should(HaveOccurred())

		// Must not panic or cascade into a non-existent instance.
		transformer.ClearCache(ctx)
	})
})
