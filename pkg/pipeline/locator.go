package pipeline

import (
	"context"
	"sync"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/otlplog/pkg/config"
)

// ErrNotFound is returned by a Locator that has no pipeline to offer.
var ErrNotFound = ewrap.New("no existing pipeline")

// Provider is the narrow surface shared by owned and borrowed pipelines.
type Provider interface {
	AddProcessor(proc Processor)
	ForceFlush(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Logger(name string) *Logger
}

var _ Provider = (*Pipeline)(nil)

// Locator finds a pipeline the host already runs.
type Locator interface {
	Locate(ctx context.Context) (Provider, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (Provider, error)

// Locate calls f.
func (f LocatorFunc) Locate(ctx context.Context) (Provider, error) { return f(ctx) }

// Registry is an in-process Locator holding at most one provider.
type Registry struct {
	mu       sync.RWMutex
	provider Provider
}

// Register makes p the provider returned by Locate.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	r.provider = p
	r.mu.Unlock()
}

// Unregister removes p if it is the registered provider.
func (r *Registry) Unregister(p Provider) {
	r.mu.Lock()
	if r.provider == p {
		r.provider = nil
	}
	r.mu.Unlock()
}

// Locate implements Locator.
func (r *Registry) Locate(context.Context) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.provider == nil {
		return nil, ErrNotFound
	}

	return r.provider, nil
}

// Handle carries a provider together with its ownership. Shutting down a
// borrowed handle only flushes; the owner keeps the pipeline running.
type Handle struct {
	Provider

	owned bool
}

// Owned reports whether the handle created the pipeline it wraps.
func (h *Handle) Owned() bool { return h.owned }

// Pipeline returns the owned pipeline, or nil for a borrowed provider.
func (h *Handle) Pipeline() *Pipeline {
	p, _ := h.Provider.(*Pipeline)
	if !h.owned {
		return nil
	}

	return p
}

// Shutdown shuts an owned pipeline down, or flushes a borrowed one.
func (h *Handle) Shutdown(ctx context.Context) error {
	if h.owned {
		return h.Provider.Shutdown(ctx)
	}

	return h.ForceFlush(ctx)
}

// Resolve borrows the pipeline found by locator, or builds an owned one from cfg.
// A nil locator always builds.
func Resolve(ctx context.Context, locator Locator, cfg config.Config, opts ...Option) (*Handle, error) {
	if locator != nil {
		provider, err := locator.Locate(ctx)
		if err == nil && provider != nil {
			return &Handle{Provider: provider}, nil
		}
	}

	p, err := New(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}

	return &Handle{Provider: p, owned: true}, nil
}
