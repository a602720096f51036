// Package render provides the local renderers used when no remote node is confidently
// selectable, and for operations served directly (capabilities, feature info).
package render

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"

	"github.com/s100fed/fedroute/internal/catalog"
	"github.com/s100fed/fedroute/internal/ogc"
)

// ErrRendererNotFound is returned by Registry.Lookup for unregistered pairs.
var ErrRendererNotFound = errors.New("renderer not found")

// Response is a rendered payload.
type Response struct {
	Status  int
	Body    []byte
	Headers http.Header
}

// OK reports whether the response has a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Renderer produces a response for a validated request.
type Renderer interface {
	Render(ctx context.Context, req ogc.Request) (*Response, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, req ogc.Request) (*Response, error)

// Render calls fn.
func (fn RendererFunc) Render(ctx context.Context, req ogc.Request) (*Response, error) {
	return fn(ctx, req)
}

// Key identifies a renderer by product and service.
type Key struct {
	Product catalog.Product
	Service catalog.Service
}

func (k Key) String() string {
	return string(k.Product) + "/" + string(k.Service)
}

// Registry maps (product, service) pairs to renderers. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	renderers map[Key]Renderer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{renderers: make(map[Key]Renderer)}
}

// Register installs r for the pair, replacing any previous renderer.
func (reg *Registry) Register(product catalog.Product, service catalog.Service, r Renderer) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.renderers[Key{Product: product, Service: service}] = r
}

// Lookup returns the renderer for the pair, or ErrRendererNotFound.
func (reg *Registry) Lookup(product catalog.Product, service catalog.Service) (Renderer, error) {
	if reg == nil {
		return nil, ErrRendererNotFound
	}
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.renderers[Key{Product: product, Service: service}]
	if !ok {
		return nil, ErrRendererNotFound
	}
	return r, nil
}

// Keys returns the registered pairs in sorted order.
func (reg *Registry) Keys() []Key {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	keys := make([]Key, 0, len(reg.renderers))
	for k := range reg.renderers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}
