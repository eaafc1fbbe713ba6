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

// Package transform turns raw domain objects into public API output objects. A Transformer couples
// a mandatory base projection, which produces the minimal output shape (typically stripping
// sensitive fields), with a map of named include resolvers that attach optional fields only when a
// caller requests them.
//
// Includes and Forwarding
//
// A caller requests includes by name. Names the transformer handles run through their resolvers
// concurrently; names it does not handle are "forwarded": every invoked resolver receives the full
// list of unhandled names and may relay them to a nested transformer, letting include requests
// travel through a graph of transformers without any central registry. Unknown names never fail at
// this level, which makes it safe to feed untyped request parameters in via UnsafeIncludes.
//
// Caching
//
// A Transformer owns named memocache.Cache instances that its resolvers use to deduplicate data
// fetches within one transformation batch, and declares which other transformers are "nested" so
// a cascading ClearCache reaches every cache in the graph exactly once, cycles included. By
// default a transformer clears the whole cascade after each Transform/TransformMany call; a
// transformer constructed with RetainCacheOnTransform keeps its caches until an explicit
// ClearCache. Nested transformers invoked in the middle of a parent call never self-clear: the
// suspension travels call-scoped on the context, so concurrent unrelated parents sharing a nested
// transformer do not interfere with each other's policies.
package transform
