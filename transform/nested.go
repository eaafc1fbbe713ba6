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

	"github.com/botobag/refract/memocache"
)

// Nested is a reference from one transformer to another for cache-cascade purposes. It comes in
// two variants: a direct reference to an existing instance (NestedTransformer) and a lazy,
// factory-backed reference (NestedFactory) which defers construction until first use. The lazy
// variant is the escape hatch for transformer graphs whose construction order is circular.
type Nested interface {
	// Get returns the referenced transformer, constructing it first when the reference is lazy.
	// Repeated calls on a lazy reference return the one constructed instance.
	Get(ctx context.Context) (*Transformer, error)
}

// Factory creates a Transformer.
type Factory interface {
	Create() (*Transformer, error)
}

// The FactoryFunc type is an adapter to allow the use of ordinary functions as Factory. If f is a
// function with the appropriate signature, FactoryFunc(f) is a Factory that calls f.
type FactoryFunc func() (*Transformer, error)

// Create implements Factory by simply calling f().
func (f FactoryFunc) Create() (*Transformer, error) {
	return f()
}

//===----------------------------------------------------------------------------------------====//
// NestedTransformer
//===----------------------------------------------------------------------------------------====//

type nestedTransformer struct {
	transformer *Transformer
}

// NestedTransformer makes a Nested reference to an existing transformer instance.
func NestedTransformer(transformer *Transformer) Nested {
	return nestedTransformer{transformer}
}

// Get implements Nested.
func (n nestedTransformer) Get(ctx context.Context) (*Transformer, error) {
	return n.transformer, nil
}

//===----------------------------------------------------------------------------------------====//
// NestedFactory
//===----------------------------------------------------------------------------------------====//

type nestedFactory struct {
	// memo holds the constructed transformer (or the construction failure) after the first Get.
	memo *memocache.Cache
}

// NestedFactory makes a lazy Nested reference: the factory runs at most once, on first resolution,
// and every later resolution (including the ones performed by the cache cascade) reuses the
// constructed instance.
func NestedFactory(factory Factory) Nested {
	return &nestedFactory{
		memo: memocache.Must(memocache.Config{
			Fetch: memocache.FetchFunc(func(ctx context.Context, _ interface{}) (interface{}, error) {
				return factory.Create()
			}),
		}),
	}
}

// Get implements Nested.
func (n *nestedFactory) Get(ctx context.Context) (*Transformer, error) {
	value, err := n.memo.CallNoArg(ctx).Result()
	if err != nil {
		return nil, err
	}

	transformer, ok := value.(*Transformer)
	if !ok || transformer == nil {
		return nil, NewError("nested transformer factory returned a nil instance", ErrKindConfig)
	}
	return transformer, nil
}

// constructed returns the transformer built by the factory, or false when the factory has not
// finished (or did not produce a usable instance). It never triggers construction and never
// blocks; an in-flight factory reports false.
func (n *nestedFactory) constructed() (*Transformer, bool) {
	task := n.memo.PeekNoArg()
	if task == nil || !task.Completed() {
		return nil, false
	}

	value, err := task.Result()
	if err != nil {
		return nil, false
	}
	transformer, ok := value.(*Transformer)
	if !ok || transformer == nil {
		return nil, false
	}
	return transformer, true
}
