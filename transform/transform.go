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
	"sync"

	"github.com/botobag/refract/concurrent"
	"github.com/botobag/refract/iterator"
)

//===----------------------------------------------------------------------------------------====//
// Inputs
//===----------------------------------------------------------------------------------------====//

// Inputs specifies a list of inputs to TransformMany and provides an iterator over them.
type Inputs interface {
	Iterator() InputIterator
}

// InputsWithSize is an Inputs with size hint.
type InputsWithSize interface {
	Inputs
	Size() int
}

// InputIterator is an iterator over inputs in Inputs.
type InputIterator interface {
	// Next returns the next input in the iteration. It conforms the iterator pattern described in
	// iterator package.
	Next() (interface{}, error)
}

// inputsArray is a return value for InputsFromArray which implements InputsWithSize.
type inputsArray struct {
	inputs []interface{}
}

type inputsArrayIterator struct {
	inputs []interface{}
	i      int
	size   int
}

// Iterator implements Inputs.
func (a inputsArray) Iterator() InputIterator {
	return &inputsArrayIterator{
		inputs: a.inputs,
		i:      0,
		size:   len(a.inputs),
	}
}

// Size implements InputsWithSize.
func (a inputsArray) Size() int {
	return len(a.inputs)
}

// Next implements InputIterator.
func (iter *inputsArrayIterator) Next() (interface{}, error) {
	i := iter.i
	if i != iter.size {
		iter.i++
		return iter.inputs[i], nil
	}
	return nil, iterator.Done
}

// InputsFromArray creates from an array of inputs.
func InputsFromArray(inputs ...interface{}) InputsWithSize {
	return inputsArray{inputs}
}

//===----------------------------------------------------------------------------------------====//
// Transform
//===----------------------------------------------------------------------------------------====//

// Params specifies arguments to a Transform call.
type Params struct {
	// Input is the source object to transform.
	Input interface{}

	// Props supplies caller-provided context to the projector and resolvers. It is passed through
	// opaquely.
	Props interface{}

	// Includes names the optional attachments requested from a trusted source.
	Includes []string

	// UnsafeIncludes names the optional attachments requested from an untrusted source (e.g., a
	// query string). Once combined with Includes they receive identical treatment; the split exists
	// so callers can keep the two provenances apart.
	UnsafeIncludes []string
}

// ManyParams specifies arguments to a TransformMany call.
type ManyParams struct {
	// Inputs is the list of source objects to transform. Every input is transformed with the same
	// Props and include lists.
	Inputs Inputs

	Props          interface{}
	Includes       []string
	UnsafeIncludes []string
}

// Transform projects input into an output object and resolves the requested includes against it.
// Unless the transformer was configured with RetainCacheOnTransform, its caches (and those of its
// nested transformers) are cleared when the call completes; calls made from within resolvers share
// the outermost call's cache window instead of clearing on their own.
func (transformer *Transformer) Transform(ctx context.Context, params Params) (interface{}, error) {
	ctx, finish := transformer.beginCall(ctx)
	defer finish()

	return transformer.transform(ctx, params.Input, params.Props, params.Includes, params.UnsafeIncludes)
}

// TransformMany transforms a batch of inputs under one cache window: duplicated cached fetches
// across the batch run once. Results are returned in input order. The first failure (in input
// order) fails the whole call.
func (transformer *Transformer) TransformMany(ctx context.Context, params ManyParams) ([]interface{}, error) {
	ctx, finish := transformer.beginCall(ctx)
	defer finish()

	var inputs []interface{}
	if sized, ok := params.Inputs.(InputsWithSize); ok {
		inputs = make([]interface{}, 0, sized.Size())
	}

	inputIter := params.Inputs.Iterator()
	for {
		input, err := inputIter.Next()
		if err == iterator.Done {
			break
		} else if err != nil {
			return nil, err
		}
		inputs = append(inputs, input)
	}

	var (
		props          = params.Props
		includes       = params.Includes
		unsafeIncludes = params.UnsafeIncludes
	)

	switch len(inputs) {
	case 0:
		return []interface{}{}, nil

	case 1:
		result, err := transformer.transform(ctx, inputs[0], props, includes, unsafeIncludes)
		if err != nil {
			return nil, err
		}
		return []interface{}{result}, nil
	}

	results := make([]interface{}, len(inputs))
	errs := make([]error, len(inputs))

	runner := transformer.config.Runner
	if runner != nil && concurrent.InExecutorScope(ctx, runner) {
		// Already on one of the runner's workers; re-submitting and awaiting could stall the pool.
		runner = nil
	}

	if runner != nil {
		// Item tasks run on the runner's workers; their include fan-out and cache fetches must not
		// submit back to the same pool, so the scope travels with the context.
		taskCtx := concurrent.WithExecutorScope(ctx, runner)
		handles := make([]concurrent.TaskHandle, len(inputs))
		for i, input := range inputs {
			input := input
			handle, err := runner.Submit(concurrent.TaskFunc(func() (interface{}, error) {
				return transformer.transform(taskCtx, input, props, includes, unsafeIncludes)
			}))
			if err != nil {
				results[i], errs[i] = transformer.transform(ctx, input, props, includes, unsafeIncludes)
				continue
			}
			handles[i] = handle
		}
		for i, handle := range handles {
			if handle != nil {
				results[i], errs[i] = handle.AwaitResult(0)
			}
		}
	} else {
		var wg sync.WaitGroup
		wg.Add(len(inputs))
		for i, input := range inputs {
			go func(i int, input interface{}) {
				defer wg.Done()
				results[i], errs[i] = transformer.transform(ctx, input, props, includes, unsafeIncludes)
			}(i, input)
		}
		wg.Wait()
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
