package ogc

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/s100fed/fedroute/internal/apierr"
	"github.com/s100fed/fedroute/internal/catalog"
	"github.com/s100fed/fedroute/internal/geo"
)

// Validator checks raw requests against the configured catalog and limits.
// The zero value accepts the full catalog with the default dimension limits.
type Validator struct {
	Catalog   *catalog.Catalog
	MaxWidth  int
	MaxHeight int
}

// NewValidator returns a Validator for cat with the given dimension limits. Non-positive
// limits fall back to DefaultMaxDimension.
func NewValidator(cat *catalog.Catalog, maxWidth, maxHeight int) *Validator {
	return &Validator{Catalog: cat, MaxWidth: maxWidth, MaxHeight: maxHeight}
}

func (v *Validator) activeCatalog() *catalog.Catalog {
	if v == nil || v.Catalog == nil {
		return catalog.Default()
	}
	return v.Catalog
}

func (v *Validator) limits() (int, int) {
	w, h := DefaultMaxDimension, DefaultMaxDimension
	if v != nil && v.MaxWidth > 0 {
		w = v.MaxWidth
	}
	if v != nil && v.MaxHeight > 0 {
		h = v.MaxHeight
	}
	return w, h
}

// Validate normalizes a request for product and service with the given query parameters.
// Failures are *apierr.Error values with a validation kind, or SERVICE_NOT_IMPLEMENTED
// for unknown operations.
//
//nolint:funlen // Sequential checks mirror the order errors are reported to clients.
func (v *Validator) Validate(product, service string, params url.Values) (Request, error) {
	cat := v.activeCatalog()
	if params == nil {
		params = url.Values{}
	}

	if !cat.HasProduct(product) {
		return Request{}, apierr.New(apierr.InvalidProduct, "").
			WithDetails("product", product).
			WithDetails("valid_products", productNames(cat))
	}
	if !cat.HasService(service) {
		return Request{}, apierr.New(apierr.InvalidServiceType, "").
			WithDetails("service_type", service).
			WithDetails("valid_service_types", serviceNames(cat))
	}

	canonicalProduct, _ := catalog.ParseProduct(product)
	canonicalService, _ := catalog.ParseService(service)
	req := Request{
		Product: canonicalProduct,
		Service: canonicalService,
		Version: Lookup(params, ParamVersion),
		Params:  params,
	}
	if req.Version == "" {
		req.Version = defaultVersions[req.Service]
	}

	if requested := Lookup(params, ParamService); requested != "" && !strings.EqualFold(strings.TrimSpace(requested), string(canonicalService)) {
		return Request{}, apierr.New(apierr.ServiceMismatch, "").
			WithDetails("requested_service", requested).
			WithDetails("expected_service", string(canonicalService))
	}

	opName := Lookup(params, ParamRequest)
	if opName == "" {
		req.Operation = catalog.OpGetCapabilities
	} else {
		op, ok := catalog.ParseOperation(opName)
		if !ok {
			return Request{}, apierr.New(apierr.ServiceNotImplemented,
				fmt.Sprintf("Operation %q is not supported", opName)).
				WithDetails("request", opName).
				WithDetails("service_type", string(canonicalService))
		}
		req.Operation = op
	}

	if req.Operation.RequiresBBox() {
		if missing := missingParams(params, ParamBBox, ParamWidth, ParamHeight); len(missing) > 0 {
			return Request{}, apierr.New(apierr.MissingParameters, "").
				WithDetails("required", []string{"bbox", "width", "height"}).
				WithDetails("missing", missing).
				WithDetails("provided", providedKeys(params))
		}
	}

	if raw := Lookup(params, ParamBBox); strings.TrimSpace(raw) != "" {
		b, err := geo.ParseBBox(raw)
		if err != nil {
			return Request{}, apierr.Wrap(apierr.InvalidBBox, err, "").
				WithDetails("bbox", raw).
				WithDetails("reason", strings.TrimPrefix(err.Error(), geo.ErrInvalidBBox.Error()+": "))
		}
		req.BBox = &b
	}

	maxW, maxH := v.limits()
	var err error
	if req.Width, err = parseDimension(params, ParamWidth, maxW); err != nil {
		return Request{}, err
	}
	if req.Height, err = parseDimension(params, ParamHeight, maxH); err != nil {
		return Request{}, err
	}

	return req, nil
}

var errDimension = errors.New("dimension out of range")

// parseDimension parses an optional positive integer no larger than limit.
func parseDimension(params url.Values, name string, limit int) (int, error) {
	raw := strings.TrimSpace(Lookup(params, name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err == nil && (n <= 0 || n > limit) {
		err = fmt.Errorf("%w: %s=%d must be within 1..%d", errDimension, strings.ToLower(name), n, limit)
	}
	if err != nil {
		return 0, apierr.Wrap(apierr.InvalidDimensions, err,
			fmt.Sprintf("width and height must be positive integers no larger than %d", limit)).
			WithDetails(strings.ToLower(name), raw).
			WithDetails("max", limit)
	}
	return n, nil
}

func missingParams(params url.Values, names ...string) []string {
	var missing []string
	for _, n := range names {
		if !Has(params, n) {
			missing = append(missing, strings.ToLower(n))
		}
	}
	return missing
}

func providedKeys(params url.Values) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func productNames(cat *catalog.Catalog) []string {
	var out []string
	for _, p := range cat.Products() {
		out = append(out, string(p))
	}
	return out
}

func serviceNames(cat *catalog.Catalog) []string {
	var out []string
	for _, s := range cat.Services() {
		out = append(out, string(s))
	}
	return out
}
