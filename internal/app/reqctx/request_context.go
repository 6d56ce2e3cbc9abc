// Package reqctx provides request-scoped memoization for application services.
//
// The HTTP layer attaches one RequestContext per inbound request. Services then
// load shared data, such as the caller's settings, at most once per request:
//
//	settings, err := reqctx.Fetch(ctx, "settings:"+userID, func(ctx context.Context) (*domain.Settings, error) {
//	    return repo.Get(ctx, userID)
//	})
//
// Without a RequestContext in ctx, Fetch simply calls the loader.
package reqctx

import (
	"context"
	"fmt"
	"sync"
)

type ctxKey struct{}

// RequestContext caches values for the lifetime of one request.
type RequestContext struct {
	cache sync.Map
}

// New creates an empty RequestContext.
func New() *RequestContext {
	return &RequestContext{}
}

// FromContext extracts the RequestContext, or nil if none is attached.
func FromContext(ctx context.Context) *RequestContext {
	if ctx == nil {
		return nil
	}

	if rc, ok := ctx.Value(ctxKey{}).(*RequestContext); ok {
		return rc
	}

	return nil
}

// WithContext attaches rc to ctx.
func WithContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// GetOrFetch returns the cached value for key, or calls fetchFn and caches its result.
// Errors are not cached.
func (rc *RequestContext) GetOrFetch(
	ctx context.Context,
	key string,
	fetchFn func(ctx context.Context) (any, error),
) (any, error) {
	if cached, ok := rc.cache.Load(key); ok {
		return cached, nil
	}

	value, err := fetchFn(ctx)
	if err != nil {
		return nil, err
	}

	actual, _ := rc.cache.LoadOrStore(key, value)

	return actual, nil
}

// Forget drops a cached value, typically after the underlying data was written.
func (rc *RequestContext) Forget(key string) {
	rc.cache.Delete(key)
}

// Fetch is the typed form of GetOrFetch on the RequestContext carried by ctx.
func Fetch[T any](ctx context.Context, key string, fetchFn func(ctx context.Context) (T, error)) (T, error) {
	rc := FromContext(ctx)
	if rc == nil {
		return fetchFn(ctx)
	}

	value, err := rc.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetchFn(ctx)
	})
	if err != nil {
		var zero T

		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		var zero T

		return zero, fmt.Errorf("request cache key %q holds %T", key, value)
	}

	return typed, nil
}

// Invalidate drops key from the RequestContext carried by ctx, if any.
func Invalidate(ctx context.Context, key string) {
	if rc := FromContext(ctx); rc != nil {
		rc.Forget(key)
	}
}
