package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/s100fed/fedroute/internal/catalog"
)

// Renderer kinds accepted in configuration.
const (
	KindHTTP   = "http"
	KindStatic = "static"
)

// Spec describes one configured renderer.
type Spec struct {
	Product     string
	Service     string
	Kind        string
	URL         string
	File        string
	ContentType string
	// Operations limits a static renderer to these operations; empty means GetCapabilities.
	Operations []string
}

// BuildRegistry constructs a registry from specs. Upstream HTTP renderers use timeout.
func BuildRegistry(specs []Spec, timeout time.Duration) (*Registry, error) {
	reg := NewRegistry()
	for i, s := range specs {
		product, ok := catalog.ParseProduct(s.Product)
		if !ok {
			return nil, fmt.Errorf("renderers[%d]: unknown product %q", i, s.Product)
		}
		service, ok := catalog.ParseService(s.Service)
		if !ok {
			return nil, fmt.Errorf("renderers[%d]: unknown service %q", i, s.Service)
		}

		var r Renderer
		switch strings.ToLower(s.Kind) {
		case KindHTTP, "":
			h, err := NewHTTPRenderer(s.URL, timeout)
			if err != nil {
				return nil, fmt.Errorf("renderers[%d]: %w", i, err)
			}
			r = h
		case KindStatic:
			ops, err := parseOperations(s.Operations)
			if err != nil {
				return nil, fmt.Errorf("renderers[%d]: %w", i, err)
			}
			st, err := NewStaticRendererFromFile(s.ContentType, s.File, ops...)
			if err != nil {
				return nil, fmt.Errorf("renderers[%d]: %w", i, err)
			}
			r = st
		default:
			return nil, fmt.Errorf("renderers[%d]: unknown kind %q; must be %q or %q", i, s.Kind, KindHTTP, KindStatic)
		}
		reg.Register(product, service, r)
	}
	return reg, nil
}

func parseOperations(names []string) ([]catalog.Operation, error) {
	if len(names) == 0 {
		return []catalog.Operation{catalog.OpGetCapabilities}, nil
	}
	ops := make([]catalog.Operation, 0, len(names))
	for _, n := range names {
		op, ok := catalog.ParseOperation(n)
		if !ok {
			return nil, fmt.Errorf("unknown operation %q", n)
		}
		ops = append(ops, op)
	}
	return ops, nil
}
