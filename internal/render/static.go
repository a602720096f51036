package render

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/s100fed/fedroute/internal/catalog"
	"github.com/s100fed/fedroute/internal/ogc"
)

// StaticRenderer serves fixed payloads, typically capability documents prepared offline.
// Operations without a payload are answered with 501 Not Implemented.
type StaticRenderer struct {
	ContentType string
	Payloads    map[catalog.Operation][]byte
}

// NewStaticRenderer serves body for every listed operation.
func NewStaticRenderer(contentType string, body []byte, ops ...catalog.Operation) *StaticRenderer {
	s := &StaticRenderer{ContentType: contentType, Payloads: make(map[catalog.Operation][]byte)}
	for _, op := range ops {
		s.Payloads[op] = body
	}
	return s
}

// NewStaticRendererFromFile reads the payload from path.
func NewStaticRendererFromFile(contentType, path string, ops ...catalog.Operation) (*StaticRenderer, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading static payload: %w", err)
	}
	return NewStaticRenderer(contentType, body, ops...), nil
}

// Render implements Renderer.
func (s *StaticRenderer) Render(_ context.Context, req ogc.Request) (*Response, error) {
	body, ok := s.Payloads[req.Operation]
	if !ok {
		return &Response{
			Status:  http.StatusNotImplemented,
			Body:    []byte(fmt.Sprintf("%s is not available for %s %s", req.Operation, req.Product, req.Service)),
			Headers: http.Header{"Content-Type": {"text/plain; charset=utf-8"}},
		}, nil
	}
	contentType := s.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	return &Response{
		Status:  http.StatusOK,
		Body:    body,
		Headers: http.Header{"Content-Type": {contentType}},
	}, nil
}
