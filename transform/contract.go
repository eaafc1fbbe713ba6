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

// Projector produces the base output for an input object: the minimal/default output shape with
// sensitive fields stripped. It is invoked exactly once per transformed item, before any include
// resolver, whether or not includes were requested.
//
// To let the include phase attach fields, return a map[string]interface{}; any other return type
// is passed through to the caller untouched and skips the include phase (there is nowhere to
// attach fields).
type Projector interface {
	Project(ctx context.Context, input interface{}, props interface{}) (interface{}, error)
}

// The ProjectFunc type is an adapter to allow the use of ordinary functions as Projector. If f is
// a function with the appropriate signature, ProjectFunc(f) is a Projector that calls f.
type ProjectFunc func(ctx context.Context, input interface{}, props interface{}) (interface{}, error)

// Project implements Projector by simply calling f(ctx, input, props).
func (f ProjectFunc) Project(ctx context.Context, input interface{}, props interface{}) (interface{}, error) {
	return f(ctx, input, props)
}

// Resolver computes the value of one optional output field. It receives the raw input (not the
// base output), the props given to the transform call, and the list of requested include names the
// owning transformer does not handle itself; a resolver that delegates to a nested transformer
// relays the forwarded names so the nested transformer can pick up the ones it knows.
type Resolver interface {
	Resolve(ctx context.Context, input interface{}, props interface{}, forwarded []string) (interface{}, error)
}

// The ResolveFunc type is an adapter to allow the use of ordinary functions as Resolver. If f is a
// function with the appropriate signature, ResolveFunc(f) is a Resolver that calls f.
type ResolveFunc func(ctx context.Context, input interface{}, props interface{}, forwarded []string) (interface{}, error)

// Resolve implements Resolver by simply calling f(ctx, input, props, forwarded).
func (f ResolveFunc) Resolve(ctx context.Context, input interface{}, props interface{}, forwarded []string) (interface{}, error) {
	return f(ctx, input, props, forwarded)
}
