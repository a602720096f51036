// Package catalog holds the fixed product, service and operation catalogs of the
// federation. Product and service names are matched case-sensitively (path segments
// are canonical upper case); operation names are matched case-insensitively as OGC
// clients send them in any case.
package catalog

import "strings"

// Product is an S-100 family product type.
type Product string

// Product constants define the maritime products the federation routes.
const (
	// ProductS101 is the Electronic Navigational Chart.
	ProductS101 Product = "S101"

	// ProductS102 is the Bathymetric Surface.
	ProductS102 Product = "S102"

	// ProductS104 is Water Level Information for surface navigation.
	ProductS104 Product = "S104"

	// ProductS111 is Surface Currents.
	ProductS111 Product = "S111"

	// ProductS124 is Navigational Warnings.
	ProductS124 Product = "S124"

	// ProductS125 is Marine Services.
	ProductS125 Product = "S125"

	// ProductS131 is Marine Protected Areas.
	ProductS131 Product = "S131"
)

//nolint:gochecknoglobals // Immutable lookup table for product display names.
var productNames = map[Product]string{
	ProductS101: "Electronic Navigational Chart",
	ProductS102: "Bathymetric Surface",
	ProductS104: "Water Level Information",
	ProductS111: "Surface Currents",
	ProductS124: "Navigational Warnings",
	ProductS125: "Marine Services",
	ProductS131: "Marine Protected Areas",
}

// DisplayName returns the human readable product name, or the code itself when unknown.
func (p Product) DisplayName() string {
	if name, ok := productNames[p]; ok {
		return name
	}
	return string(p)
}

// Service is an OGC service type.
type Service string

// Service constants define the supported OGC service types.
const (
	ServiceWMS Service = "WMS"
	ServiceWFS Service = "WFS"
	ServiceWCS Service = "WCS"
)

// Operation is an OGC request operation (the REQUEST query parameter).
type Operation string

// Operation constants define the supported OGC operations.
const (
	OpGetCapabilities     Operation = "GetCapabilities"
	OpGetMap              Operation = "GetMap"
	OpGetFeatureInfo      Operation = "GetFeatureInfo"
	OpDescribeLayer       Operation = "DescribeLayer"
	OpGetLegendGraphic    Operation = "GetLegendGraphic"
	OpGetFeature          Operation = "GetFeature"
	OpDescribeFeatureType Operation = "DescribeFeatureType"
	OpDescribeCoverage    Operation = "DescribeCoverage"
	OpGetCoverage         Operation = "GetCoverage"
)

// RequiresBBox reports whether the operation renders a spatial extent and therefore
// needs BBOX, WIDTH and HEIGHT. Only these operations go through capability resolution.
func (o Operation) RequiresBBox() bool {
	return o == OpGetMap || o == OpGetCoverage
}

// ValidProducts returns all supported products in catalog order.
func ValidProducts() []Product {
	return []Product{
		ProductS101,
		ProductS102,
		ProductS104,
		ProductS111,
		ProductS124,
		ProductS125,
		ProductS131,
	}
}

// ValidServices returns all supported service types.
func ValidServices() []Service {
	return []Service{ServiceWMS, ServiceWFS, ServiceWCS}
}

// ValidOperations returns all supported operations.
func ValidOperations() []Operation {
	return []Operation{
		OpGetCapabilities,
		OpGetMap,
		OpGetFeatureInfo,
		OpDescribeLayer,
		OpGetLegendGraphic,
		OpGetFeature,
		OpDescribeFeatureType,
		OpDescribeCoverage,
		OpGetCoverage,
	}
}

// IsValidProduct reports whether name matches a supported product, ignoring case.
func IsValidProduct(name string) bool {
	_, ok := ParseProduct(name)
	return ok
}

// IsValidService reports whether name matches a supported service type, ignoring case.
func IsValidService(name string) bool {
	_, ok := ParseService(name)
	return ok
}

// ParseProduct parses s into its canonical Product, ignoring case and surrounding space.
func ParseProduct(s string) (Product, bool) {
	s = strings.TrimSpace(s)
	for _, p := range ValidProducts() {
		if strings.EqualFold(string(p), s) {
			return p, true
		}
	}
	return "", false
}

// ParseService parses s into its canonical Service, ignoring case and surrounding space.
func ParseService(s string) (Service, bool) {
	s = strings.TrimSpace(s)
	for _, svc := range ValidServices() {
		if strings.EqualFold(string(svc), s) {
			return svc, true
		}
	}
	return "", false
}

// ParseOperation parses s into an Operation, ignoring case.
func ParseOperation(s string) (Operation, bool) {
	for _, op := range ValidOperations() {
		if strings.EqualFold(string(op), s) {
			return op, true
		}
	}
	return "", false
}

// ValidProductNames returns the string names of all supported products.
func ValidProductNames() []string {
	products := ValidProducts()
	names := make([]string, len(products))
	for i, p := range products {
		names[i] = string(p)
	}
	return names
}

// ValidServiceNames returns the string names of all supported service types.
func ValidServiceNames() []string {
	services := ValidServices()
	names := make([]string, len(services))
	for i, s := range services {
		names[i] = string(s)
	}
	return names
}

// Catalog is a configured subset of the product and service catalogs. A deployment can
// narrow what it accepts; it cannot add codes outside the fixed catalogs.
type Catalog struct {
	products map[Product]bool
	services map[Service]bool
}

// Default returns a Catalog accepting every supported product and service.
func Default() *Catalog {
	c, _ := New(nil, nil)
	return c
}

// New builds a Catalog from product and service names. Empty lists mean "all". Unknown
// names are returned in unknown so callers can report them; they are never accepted.
func New(products, services []string) (c *Catalog, unknown []string) {
	c = &Catalog{
		products: make(map[Product]bool),
		services: make(map[Service]bool),
	}

	if len(products) == 0 {
		for _, p := range ValidProducts() {
			c.products[p] = true
		}
	}
	for _, name := range products {
		p, ok := ParseProduct(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		c.products[p] = true
	}

	if len(services) == 0 {
		for _, s := range ValidServices() {
			c.services[s] = true
		}
	}
	for _, name := range services {
		s, ok := ParseService(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		c.services[s] = true
	}

	return c, unknown
}

// HasProduct reports whether the catalog accepts the product name.
func (c *Catalog) HasProduct(name string) bool {
	p, ok := ParseProduct(name)
	return ok && c.products[p]
}

// HasService reports whether the catalog accepts the service name.
func (c *Catalog) HasService(name string) bool {
	s, ok := ParseService(name)
	return ok && c.services[s]
}

// Products returns the accepted products in catalog order.
func (c *Catalog) Products() []Product {
	var out []Product
	for _, p := range ValidProducts() {
		if c.products[p] {
			out = append(out, p)
		}
	}
	return out
}

// Services returns the accepted services in catalog order.
func (c *Catalog) Services() []Service {
	var out []Service
	for _, s := range ValidServices() {
		if c.services[s] {
			out = append(out, s)
		}
	}
	return out
}
