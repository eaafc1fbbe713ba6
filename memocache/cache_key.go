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

package memocache

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// defaultCacheKey is the fixed slot used by CallNoArg.
const defaultCacheKey = "__default__"

// json uses the stdlib-compatible config so map keys inside a value are marshaled in sorted order,
// keeping derived cache keys deterministic.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// cacheKeyFor derives the cache key for an argument:
//
//   - nil yields a fixed key distinct from the 0-arg slot;
//   - maps with string keys and structs yield their top-level entries normalized to "key:value"
//     pairs, sorted by key name and joined, so key hits are insertion-order independent. keyFields,
//     when non-empty, restricts which entries participate;
//   - everything else yields the argument's stringification.
//
// Two keys are equal only if the top-level stringified pairs are textually equal; callers must not
// rely on any deeper equality of nested values.
func cacheKeyFor(arg interface{}, keyFields []string) string {
	if arg == nil {
		return "nil"
	}

	value := reflect.ValueOf(arg)
	for value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return "nil"
		}
		value = value.Elem()
	}

	switch value.Kind() {
	case reflect.Map:
		if value.Type().Key().Kind() == reflect.String {
			return objectCacheKey(mapEntries(value), keyFields)
		}

	case reflect.Struct:
		return objectCacheKey(structEntries(value), keyFields)
	}

	return stringify(arg)
}

// objectCacheKey normalizes entries into sorted "key:value" pairs and joins them.
func objectCacheKey(entries map[string]interface{}, keyFields []string) string {
	keys := make([]string, 0, len(entries))
	if len(keyFields) > 0 {
		for _, key := range keyFields {
			if _, found := entries[key]; found {
				keys = append(keys, key)
			}
		}
	} else {
		for key := range entries {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, key := range keys {
		pairs[i] = key + ":" + stringify(entries[key])
	}
	return strings.Join(pairs, ",")
}

func mapEntries(value reflect.Value) map[string]interface{} {
	entries := make(map[string]interface{}, value.Len())
	for _, key := range value.MapKeys() {
		entries[key.String()] = value.MapIndex(key).Interface()
	}
	return entries
}

func structEntries(value reflect.Value) map[string]interface{} {
	typ := value.Type()
	numFields := typ.NumField()
	entries := make(map[string]interface{}, numFields)
	for i := 0; i < numFields; i++ {
		field := typ.Field(i)
		// Skip unexported fields; their values cannot be read via reflection.
		if field.PkgPath != "" {
			continue
		}
		entries[field.Name] = value.Field(i).Interface()
	}
	return entries
}

func stringify(value interface{}) string {
	if value == nil {
		return "nil"
	}
	s, err := json.MarshalToString(value)
	if err != nil {
		// Values that cannot be marshaled (channels, funcs) still deserve a deterministic
		// process-local key.
		return fmt.Sprintf("%v", value)
	}
	return s
}
