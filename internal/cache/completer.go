/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Cached Completions
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package cache

import (
	"context"
	"strconv"

	"github.com/thomasphilipwalter/OPF-Community-Database-Tools/internal/llm"
)

// CachingCompleter answers repeated identical requests from the cache.
// Errors are never cached.
type CachingCompleter struct {
	inner llm.Completer
	cache *Tiered
	model string
}

// NewCachingCompleter wraps inner. model is the default model name used in
// the key when a request does not name one.
func NewCachingCompleter(inner llm.Completer, cache *Tiered, model string) *CachingCompleter {
	return &CachingCompleter{inner: inner, cache: cache, model: model}
}

func (c *CachingCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	key := Key("llm", model, req.System, req.Prompt,
		strconv.FormatFloat(req.Temperature, 'f', -1, 64), strconv.Itoa(req.MaxTokens))

	if data, ok := c.cache.Get(ctx, key); ok {
		return string(data), nil
	}

	text, err := c.inner.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	c.cache.Set(ctx, key, []byte(text))
	return text, nil
}
