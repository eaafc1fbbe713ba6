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
	"sync"

	"github.com/botobag/refract/concurrent"
)

//===----------------------------------------------------------------------------------------====//
// Include List Handling
//===----------------------------------------------------------------------------------------====//

// combineIncludes merges the trusted and untrusted include lists into one list with duplicates
// removed. The first occurrence of each name decides its position.
func combineIncludes(includes []string, unsafeIncludes []string) []string {
	numIncludes := len(includes) + len(unsafeIncludes)
	if numIncludes == 0 {
		return nil
	}

	combined := make([]string, 0, numIncludes)
	seen := make(map[string]bool, numIncludes)
	for _, names := range [][]string{includes, unsafeIncludes} {
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				combined = append(combined, name)
			}
		}
	}
	return combined
}

// partitionIncludes splits the combined include list into the names this transformer resolves
// itself and the names it forwards to its resolvers untouched.
func (transformer *Transformer) partitionIncludes(combined []string) (handled []string, forwarded []string) {
	resolvers := transformer.config.Resolvers
	for _, name := range combined {
		if _, ok := resolvers[name]; ok {
			handled = append(handled, name)
		} else {
			forwarded = append(forwarded, name)
		}
	}
	return
}

//===----------------------------------------------------------------------------------------====//
// Include Resolution
//===----------------------------------------------------------------------------------------====//

// resolveIncludes runs the resolver for every handled include and attaches the results to output
// under the include names. Resolvers run concurrently; output is only written after every resolver
// has completed, so a failing sibling never leaves a partially-augmented output behind. The first
// failure (in include order) is returned and output is left untouched.
func (transformer *Transformer) resolveIncludes(
	ctx context.Context,
	output map[string]interface{},
	input interface{},
	props interface{},
	handled []string,
	forwarded []string) error {

	resolvers := transformer.config.Resolvers

	// Resolve a single include on the calling goroutine.
	if len(handled) == 1 {
		name := handled[0]
		value, err := resolvers[name].Resolve(ctx, input, props, forwarded)
		if err != nil {
			return includeError(name, err)
		}
		output[name] = value
		return nil
	}

	values := make([]interface{}, len(handled))
	errs := make([]error, len(handled))

	runner := transformer.config.Runner
	if runner != nil && concurrent.InExecutorScope(ctx, runner) {
		// This call already runs on one of the runner's workers (e.g., a batch item submitted by
		// TransformMany). Re-submitting to the same pool and awaiting would let resolver tasks
		// queue behind the very workers blocked on them; fan out on goroutines instead.
		runner = nil
	}

	if runner != nil {
		taskCtx := concurrent.WithExecutorScope(ctx, runner)
		handles := make([]concurrent.TaskHandle, len(handled))
		for i, name := range handled {
			resolver := resolvers[name]
			handle, err := runner.Submit(concurrent.TaskFunc(func() (interface{}, error) {
				return resolver.Resolve(taskCtx, input, props, forwarded)
			}))
			if err != nil {
				// Runner rejected the task (e.g., it has been shut down). Resolve on the calling
				// goroutine.
				values[i], errs[i] = resolver.Resolve(ctx, input, props, forwarded)
				continue
			}
			handles[i] = handle
		}
		for i, handle := range handles {
			if handle != nil {
				values[i], errs[i] = handle.AwaitResult(0)
			}
		}
	} else {
		var wg sync.WaitGroup
		wg.Add(len(handled))
		for i, name := range handled {
			go func(i int, resolver Resolver) {
				defer wg.Done()
				values[i], errs[i] = resolver.Resolve(ctx, input, props, forwarded)
			}(i, resolvers[name])
		}
		wg.Wait()
	}

	for i, name := range handled {
		if err := errs[i]; err != nil {
			return includeError(name, err)
		}
	}

	for i, name := range handled {
		output[name] = values[i]
	}
	return nil
}

func includeError(name string, err error) error {
	return NewError(
		fmt.Sprintf("failed to resolve include %q", name), ErrKindInclude, IncludeName(name), err)
}

//===----------------------------------------------------------------------------------------====//
// Transform Pipeline
//===----------------------------------------------------------------------------------------====//

// transform runs the projection and include-resolution pipeline for one input. It assumes the
// cache lifecycle of the call has already been set up by the caller.
func (transformer *Transformer) transform(
	ctx context.Context,
	input interface{},
	props interface{},
	includes []string,
	unsafeIncludes []string) (interface{}, error) {

	output, err := transformer.config.Projector.Project(ctx, input, props)
	if err != nil {
		return nil, err
	}

	combined := combineIncludes(includes, unsafeIncludes)
	if len(combined) == 0 {
		return output, nil
	}

	// Includes attach keyed values; an output that is not a map has nowhere to put them.
	outputMap, ok := output.(map[string]interface{})
	if !ok || outputMap == nil {
		return output, nil
	}

	handled, forwarded := transformer.partitionIncludes(combined)
	if len(handled) == 0 {
		return output, nil
	}

	if err := transformer.resolveIncludes(ctx, outputMap, input, props, handled, forwarded); err != nil {
		return nil, err
	}
	return output, nil
}
