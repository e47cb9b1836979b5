package infuse

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ResolveAsync produces an instance for the token with dependencies
// resolved concurrently. In-flight resolutions of the same token are
// coalesced: concurrent callers share a single instantiation and receive
// the same instance or error.
//
// A cancelled context makes the caller return ctx.Err() immediately, but
// an instantiation that already started runs to completion; its result
// still lands in the cache for later callers.
func (r *Resolver) ResolveAsync(ctx context.Context, token Token) (any, error) {
	if token == nil {
		return nil, ErrTokenNil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	return r.resolveAsync(ctx, newResolution(), token)
}

func (r *Resolver) resolveAsync(ctx context.Context, res *resolution, token Token) (any, error) {
	if r.maxDepth > 0 && len(res.path) >= r.maxDepth {
		return nil, MaxDepthError{Token: token, Depth: len(res.path)}
	}

	if err := res.enter(token); err != nil {
		return nil, err
	}
	defer res.exit(token)

	cfg, ok := r.registry.Provider(token)
	if !ok {
		return r.resolveMissing(token)
	}

	if cfg.Value != nil {
		return cfg.Value, nil
	}

	var scopeID string
	if cfg.Lifecycle == Scoped {
		scopeID = r.ScopeID()
	}

	if instance, ok := r.cached(token, cfg, scopeID); ok {
		return instance, nil
	}

	// The flight body owns a forked resolution state and a context
	// detached from the caller's cancellation: the caller may abandon
	// the wait while the body keeps running, and other callers joined
	// on the flight must still receive the instance.
	branch := res.fork()
	flightCtx := context.WithoutCancel(ctx)
	ch := r.flight.DoChan(r.flightKey(token, cfg, scopeID), func() (any, error) {
		// Another flight may have completed and cached since the check
		// above.
		if instance, ok := r.cached(token, cfg, scopeID); ok {
			return instance, nil
		}

		instance, err := r.instantiateAsync(flightCtx, branch, token, cfg)
		if err != nil {
			return nil, err
		}

		r.store(token, cfg, instance, scopeID)
		r.recordEdges(token, cfg)
		return instance, nil
	})

	select {
	case result := <-ch:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// instantiateAsync resolves declared dependencies concurrently, then
// invokes the factory or constructor with them in declared order.
func (r *Resolver) instantiateAsync(ctx context.Context, res *resolution, token Token, cfg *ProviderConfig) (any, error) {
	deps := make([]any, len(cfg.Dependencies))

	g, gctx := errgroup.WithContext(ctx)
	for i, dep := range cfg.Dependencies {
		i, dep := i, dep
		g.Go(func() error {
			instance, err := r.resolveAsync(gctx, res.fork(), dep)
			if err != nil {
				return err
			}
			deps[i] = instance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return r.construct(token, cfg, deps)
}
