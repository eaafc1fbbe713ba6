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

package transform

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/botobag/refract/concurrent"
	"github.com/botobag/refract/memocache"
)

// CachePolicy decides what happens to a transformer's caches (and, through the cascade, the caches
// of its nested transformers) when one of its managed entry points finishes.
type CachePolicy int

// Enumeration of CachePolicy
const (
	// ClearCacheOnTransform (the default) runs the cascading clear after each top-level
	// Transform/TransformMany call, scoping memoized fetches to a single call.
	ClearCacheOnTransform CachePolicy = iota

	// RetainCacheOnTransform keeps all caches until an explicit ClearCache.
	RetainCacheOnTransform
)

// Config specifies:
//
//  1. The way to build the base output and to resolve includes;
//  2. The caches and nested transformer references participating in the cache cascade;
//  3. The cache lifecycle policy.
type Config struct {
	// (Required) Projector builds the base output from an input object.
	Projector Projector

	// (Optional) Resolvers maps an include name to the resolver computing that output field.
	// Requested names absent from this map are forwarded, never rejected.
	Resolvers map[string]Resolver

	// (Optional) Caches are the named memoizing caches owned by this transformer. Resolvers use
	// them (via the Cache accessor) to deduplicate fetches; the cache cascade clears every one of
	// them.
	Caches map[string]*memocache.Cache

	// (Optional) Nested declares the transformers whose caches are cleared together with this
	// one's. Use NestedTransformer for an existing instance and NestedFactory for one that should
	// be constructed lazily. The graph may contain cycles.
	Nested map[string]Nested

	// (Optional) CachePolicy; defaults to ClearCacheOnTransform.
	CachePolicy CachePolicy

	// (Optional) Runner for executing include resolvers and batch items. When nil, plain
	// goroutines are used.
	Runner concurrent.Executor
}

// A Transformer turns raw domain objects into public output objects. Construct one with New and
// reuse it across calls; reuse is what makes its caches and lazily built nested transformers pay
// off. All methods are safe for concurrent use, though overlapping top-level calls on one instance
// with ClearCacheOnTransform share a single cache window (the finishing call clears for both).
type Transformer struct {
	config Config

	// signature identifies this instance during graph walks (cache cascade, call scoping). It is
	// never part of transformed data.
	signature uint64
}

// lastSignature is the source of process-unique transformer signatures.
var lastSignature uint64

// New creates a Transformer instance from given config.
func New(config Config) (*Transformer, error) {
	if config.Projector == nil {
		return nil, NewError("projector is required to construct a Transformer", ErrKindConfig)
	}

	return &Transformer{
		config:    config,
		signature: atomic.AddUint64(&lastSignature, 1),
	}, nil
}

// Cache returns the named cache declared in the transformer's config, or nil if there is no cache
// under the name. Resolvers call this to reach the caches of the transformer they serve.
func (transformer *Transformer) Cache(name string) *memocache.Cache {
	return transformer.config.Caches[name]
}

// Nested returns the nested transformer declared under name in the transformer's config,
// constructing a factory-backed one on first use. Resolvers call this to delegate part of their
// work to another transformer; invoking it with the resolver's context keeps both transformers in
// one cache window.
func (transformer *Transformer) Nested(ctx context.Context, name string) (*Transformer, error) {
	nested, ok := transformer.config.Nested[name]
	if !ok {
		return nil, NewError(fmt.Sprintf("no nested transformer under %q", name), ErrKindConfig)
	}
	return nested.Get(ctx)
}
