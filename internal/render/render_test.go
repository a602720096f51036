package render

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s100fed/fedroute/internal/catalog"
	"github.com/s100fed/fedroute/internal/federation"
	"github.com/s100fed/fedroute/internal/ogc"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Lookup(catalog.ProductS101, catalog.ServiceWMS)
	require.ErrorIs(t, err, ErrRendererNotFound)

	st := NewStaticRenderer("text/xml", []byte("<caps/>"), catalog.OpGetCapabilities)
	reg.Register(catalog.ProductS101, catalog.ServiceWMS, st)
	reg.Register(catalog.ProductS102, catalog.ServiceWCS, st)

	got, err := reg.Lookup(catalog.ProductS101, catalog.ServiceWMS)
	require.NoError(t, err)
	assert.Same(t, st, got)

	assert.Equal(t, []Key{
		{Product: catalog.ProductS101, Service: catalog.ServiceWMS},
		{Product: catalog.ProductS102, Service: catalog.ServiceWCS},
	}, reg.Keys())

	var nilReg *Registry
	_, err = nilReg.Lookup(catalog.ProductS101, catalog.ServiceWMS)
	assert.ErrorIs(t, err, ErrRendererNotFound)
}

func TestStaticRenderer(t *testing.T) {
	st := NewStaticRenderer("application/xml", []byte("<WMS_Capabilities/>"), catalog.OpGetCapabilities)

	resp, err := st.Render(context.Background(), ogc.Request{Operation: catalog.OpGetCapabilities})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "application/xml", resp.Headers.Get("Content-Type"))
	assert.Equal(t, "<WMS_Capabilities/>", string(resp.Body))

	resp, err = st.Render(context.Background(), ogc.Request{Operation: catalog.OpGetMap, Product: "S101", Service: "WMS"})
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusNotImplemented, resp.Status)
}

func TestHTTPRenderer(t *testing.T) {
	var gotQuery url.Values
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Connection", "close")
		_, _ = w.Write([]byte("PNGDATA"))
	}))
	defer upstream.Close()

	h, err := NewHTTPRenderer(upstream.URL+"/wms?map=s102&FORMAT=image/jpeg", time.Second)
	require.NoError(t, err)

	params := url.Values{"REQUEST": {"GetMap"}, "FORMAT": {"image/png"}, "BBOX": {"1,2,3,4"}}
	resp, err := h.Render(context.Background(), ogc.Request{Product: "S102", Service: "WMS", Params: params})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "PNGDATA", string(resp.Body))
	assert.Equal(t, "image/png", resp.Headers.Get("Content-Type"))
	assert.Empty(t, resp.Headers.Get("Connection"))

	assert.Equal(t, "s102", gotQuery.Get("map"))
	assert.Equal(t, "image/png", gotQuery.Get("FORMAT"))
	assert.Equal(t, "1,2,3,4", gotQuery.Get("BBOX"))
}

func TestHTTPRenderer_BodyCap(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer upstream.Close()

	h, err := NewHTTPRenderer(upstream.URL, time.Second)
	require.NoError(t, err)
	h.MaxBodyBytes = 16

	_, err = h.Render(context.Background(), ogc.Request{})
	require.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestHTTPRenderer_Unreachable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	addr := upstream.URL
	upstream.Close()

	h, err := NewHTTPRenderer(addr, 200*time.Millisecond)
	require.NoError(t, err)
	_, err = h.Render(context.Background(), ogc.Request{})
	require.Error(t, err)
}

func TestNewHTTPRenderer_InvalidURL(t *testing.T) {
	_, err := NewHTTPRenderer("not a url", time.Second)
	require.Error(t, err)
}

func TestMergeQuery(t *testing.T) {
	got, err := MergeQuery("https://node.example.org/wms?map=a&VERSION=1.1.1", url.Values{
		"VERSION": {"1.3.0"},
		"BBOX":    {"120,30,122,32"},
	})
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "node.example.org", u.Host)
	assert.Equal(t, "/wms", u.Path)
	q := u.Query()
	assert.Equal(t, "a", q.Get("map"))
	assert.Equal(t, []string{"1.3.0"}, q["VERSION"])
	assert.Equal(t, "120,30,122,32", q.Get("BBOX"))
}

func TestMergeQuery_RequiresAbsoluteEndpoint(t *testing.T) {
	for _, base := range []string{"", "/wms", "node.example.org/wms", "mailto:ops@example.org"} {
		_, err := MergeQuery(base, url.Values{"BBOX": {"120,30,122,32"}})
		require.ErrorIs(t, err, federation.ErrInvalidEndpoint, "base %q", base)
	}
}

func TestBuildRegistry(t *testing.T) {
	dir := t.TempDir()
	capsPath := filepath.Join(dir, "caps.xml")
	require.NoError(t, os.WriteFile(capsPath, []byte("<caps/>"), 0o600))

	reg, err := BuildRegistry([]Spec{
		{Product: "S101", Service: "WMS", Kind: KindHTTP, URL: "http://localhost:8081/wms"},
		{Product: "S102", Service: "WCS", Kind: KindStatic, File: capsPath, ContentType: "text/xml"},
	}, time.Second)
	require.NoError(t, err)
	assert.Len(t, reg.Keys(), 2)

	r, err := reg.Lookup(catalog.ProductS102, catalog.ServiceWCS)
	require.NoError(t, err)
	resp, err := r.Render(context.Background(), ogc.Request{Operation: catalog.OpGetCapabilities})
	require.NoError(t, err)
	assert.Equal(t, "<caps/>", string(resp.Body))

	tests := []struct {
		name string
		spec Spec
	}{
		{"unknown product", Spec{Product: "S999", Service: "WMS", URL: "http://x"}},
		{"unknown service", Spec{Product: "S101", Service: "WMTS", URL: "http://x"}},
		{"bad url", Spec{Product: "S101", Service: "WMS", URL: "::"}},
		{"missing file", Spec{Product: "S101", Service: "WMS", Kind: KindStatic, File: filepath.Join(dir, "nope")}},
		{"bad operation", Spec{Product: "S101", Service: "WMS", Kind: KindStatic, File: capsPath, Operations: []string{"GetTile"}}},
		{"unknown kind", Spec{Product: "S101", Service: "WMS", Kind: "grpc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildRegistry([]Spec{tt.spec}, time.Second)
			require.Error(t, err)
		})
	}
}
