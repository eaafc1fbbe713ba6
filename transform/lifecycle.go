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
)

//===----------------------------------------------------------------------------------------====//
// Call Scope
//===----------------------------------------------------------------------------------------====//

// callScopeKey marks a context as belonging to an in-flight transform call. A transformer invoked
// under such a context (e.g., a nested transformer run by a resolver) shares the caller's cache
// window and must not clear caches on completion; the outermost call does that once.
type callScopeKey struct{}

func withCallScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, callScopeKey{}, true)
}

func inCallScope(ctx context.Context) bool {
	scoped, _ := ctx.Value(callScopeKey{}).(bool)
	return scoped
}

// beginCall sets up the cache lifecycle for a transform call. It returns the context to run the
// call under and a finish function which the caller must invoke (regardless of the call outcome)
// once the call completes.
func (transformer *Transformer) beginCall(ctx context.Context) (context.Context, func()) {
	// Inner call: the outermost transformer owns the lifecycle.
	if inCallScope(ctx) {
		return ctx, func() {}
	}

	ctx = withCallScope(ctx)
	if transformer.config.CachePolicy == RetainCacheOnTransform {
		return ctx, func() {}
	}
	return ctx, func() {
		transformer.ClearCache(ctx)
	}
}

//===----------------------------------------------------------------------------------------====//
// Cascading Cache Clear
//===----------------------------------------------------------------------------------------====//

// ClearCache clears every cache owned by the transformer and cascades the clear through its
// nested transformers. Transformer graphs may contain cycles; each transformer in the graph is
// cleared exactly once per call. Nested transformers behind a factory that has not been
// constructed yet (or whose construction failed) have no caches and are skipped.
func (transformer *Transformer) ClearCache(ctx context.Context) {
	transformer.clearCache(ctx, make(map[uint64]bool))
}

func (transformer *Transformer) clearCache(ctx context.Context, visited map[uint64]bool) {
	if visited[transformer.signature] {
		return
	}
	visited[transformer.signature] = true

	for _, cache := range transformer.config.Caches {
		cache.Clear()
	}

	for _, nested := range transformer.config.Nested {
		if lazy, ok := nested.(*nestedFactory); ok {
			// Don't force construction just to clear; only cascade into instances that exist.
			instance, ok := lazy.constructed()
			if !ok {
				continue
			}
			instance.clearCache(ctx, visited)
			continue
		}

		instance, err := nested.Get(ctx)
		if err != nil {
			continue
		}
		instance.clearCache(ctx, visited)
	}
}
