// Package federation defines the data model shared by routing and discovery: nodes of
// the service hierarchy, published datasets, service capabilities and the joined
// candidate records the resolution engine ranks.
package federation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/s100fed/fedroute/internal/geo"
)

// ErrInvalidNode is returned by Node.Validate.
var ErrInvalidNode = errors.New("invalid node")

// ErrInvalidEndpoint is returned by ValidateEndpoint.
var ErrInvalidEndpoint = errors.New("invalid endpoint")

// HealthStatus is the operational health of a node.
type HealthStatus string

// Health status constants.
const (
	HealthHealthy HealthStatus = "HEALTHY"
	HealthWarning HealthStatus = "WARNING"
	HealthError   HealthStatus = "ERROR"
	HealthOffline HealthStatus = "OFFLINE"
	HealthUnknown HealthStatus = "UNKNOWN"
)

// ParseHealthStatus parses s case-insensitively. Unrecognized values become HealthUnknown.
func ParseHealthStatus(s string) HealthStatus {
	switch HealthStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case HealthHealthy:
		return HealthHealthy
	case HealthWarning:
		return HealthWarning
	case HealthError:
		return HealthError
	case HealthOffline:
		return HealthOffline
	default:
		return HealthUnknown
	}
}

// Rank orders statuses from healthiest (0) to least healthy. OFFLINE and UNKNOWN share
// the lowest rank.
func (h HealthStatus) Rank() int {
	switch h {
	case HealthHealthy:
		return 0
	case HealthWarning:
		return 1
	case HealthError:
		return 2
	default:
		return 3
	}
}

// Meets reports whether h is at least as healthy as threshold. An empty threshold
// accepts HEALTHY only.
func (h HealthStatus) Meets(threshold HealthStatus) bool {
	if threshold == "" {
		threshold = HealthHealthy
	}
	return h.Rank() <= threshold.Rank()
}

// AtLeast returns every status meeting threshold, healthiest first. Stores use it to
// build the status list of a candidate query.
func AtLeast(threshold HealthStatus) []HealthStatus {
	var out []HealthStatus
	for _, h := range []HealthStatus{HealthHealthy, HealthWarning, HealthError, HealthOffline, HealthUnknown} {
		if h.Meets(threshold) {
			out = append(out, h)
		}
	}
	return out
}

// DatasetStatus is the publication state of a dataset.
type DatasetStatus string

// Dataset status constants.
const (
	DatasetUploaded     DatasetStatus = "UPLOADED"
	DatasetProcessing   DatasetStatus = "PROCESSING"
	DatasetPublished    DatasetStatus = "PUBLISHED"
	DatasetArchived     DatasetStatus = "ARCHIVED"
	DatasetError        DatasetStatus = "ERROR"
	DatasetExperimental DatasetStatus = "EXPERIMENTAL"
)

// ParseDatasetStatus parses s case-insensitively. It returns false for unknown values.
func ParseDatasetStatus(s string) (DatasetStatus, bool) {
	st := DatasetStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case DatasetUploaded, DatasetProcessing, DatasetPublished, DatasetArchived, DatasetError, DatasetExperimental:
		return st, true
	}
	return "", false
}

// Node is a service provider in the federation hierarchy. Level 0 is the global root.
type Node struct {
	ID       string       `yaml:"id" json:"id"`
	Name     string       `yaml:"name" json:"name"`
	Level    int          `yaml:"level" json:"level"`
	Health   HealthStatus `yaml:"health" json:"healthStatus"`
	Coverage geo.Coverage `yaml:"coverage,omitempty" json:"coverage"`
	Active   bool         `yaml:"active" json:"isActive"`
	ParentID string       `yaml:"parent_id,omitempty" json:"parentId,omitempty"`
}

// Validate checks the hierarchy invariants of a single node.
func (n Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidNode)
	}
	if n.Level < 0 {
		return fmt.Errorf("%w: node %q level must be >= 0, got %d", ErrInvalidNode, n.ID, n.Level)
	}
	if n.Level == 0 && n.ParentID != "" {
		return fmt.Errorf("%w: node %q at level 0 cannot have a parent", ErrInvalidNode, n.ID)
	}
	return nil
}

// Dataset is a published data product held by a node.
type Dataset struct {
	ID          string        `yaml:"id" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	ProductType string        `yaml:"product_type" json:"productType"`
	Status      DatasetStatus `yaml:"status" json:"status"`
	Coverage    geo.Coverage  `yaml:"coverage,omitempty" json:"coverage"`
	PublishedAt *time.Time    `yaml:"published_at,omitempty" json:"publishedAt,omitempty"`
}

// Capability declares that a node offers a service type for a product type.
type Capability struct {
	ID          string `yaml:"id" json:"id"`
	NodeID      string `yaml:"node_id" json:"nodeId"`
	ProductType string `yaml:"product_type" json:"productType"`
	ServiceType string `yaml:"service_type" json:"serviceType"`
	Enabled     bool   `yaml:"enabled" json:"isEnabled"`
	Endpoint    string `yaml:"endpoint" json:"endpoint"`
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`
	DatasetID   string `yaml:"dataset_id,omitempty" json:"datasetId,omitempty"`
}

// ValidateEndpoint checks that raw is an absolute http or https URL with a host.
// Only such endpoints can be redirected to.
func ValidateEndpoint(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidEndpoint)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidEndpoint, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q must use http or https", ErrInvalidEndpoint, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q has no host", ErrInvalidEndpoint, raw)
	}
	return nil
}

// Key identifies a capability by its unique (node, product, service) triple.
func (c Capability) Key() string {
	return c.NodeID + "/" + c.ProductType + "/" + c.ServiceType
}

// Candidate is a capability joined with its node and, when present, its dataset.
type Candidate struct {
	Capability Capability `json:"capability"`
	Node       Node       `json:"node"`
	Dataset    *Dataset   `json:"dataset,omitempty"`
}

// ID returns the capability id, the final tie-break when ranking candidates.
func (c Candidate) ID() string {
	return c.Capability.ID
}

// SearchableText joins the fields context terms are matched against.
func (c Candidate) SearchableText() string {
	parts := []string{c.Node.Name}
	if c.Dataset != nil {
		parts = append(parts, c.Dataset.Name, c.Dataset.Description)
	}
	parts = append(parts, c.Capability.ProductType, c.Capability.ServiceType)
	return strings.Join(parts, " ")
}

// Eligible reports whether the candidate may be routed to: the capability is enabled,
// the node is active and meets the health threshold, and an attached dataset is published.
func (c Candidate) Eligible(threshold HealthStatus) bool {
	if !c.Capability.Enabled || !c.Node.Active {
		return false
	}
	if !c.Node.Health.Meets(threshold) {
		return false
	}
	return c.Dataset == nil || c.Dataset.Status == DatasetPublished
}

// Coverages returns the defined coverages of the node and dataset, node first.
func (c Candidate) Coverages() []geo.Coverage {
	var out []geo.Coverage
	if c.Node.Coverage.Defined() {
		out = append(out, c.Node.Coverage)
	}
	if c.Dataset != nil && c.Dataset.Coverage.Defined() {
		out = append(out, c.Dataset.Coverage)
	}
	return out
}

// Factors holds the per-factor scores of a recommendation. Factors that did not apply
// to the request are nil.
type Factors struct {
	Quality    float64  `json:"quality"`
	Preference *float64 `json:"preference,omitempty"`
	Context    *float64 `json:"context,omitempty"`
	Spatial    *float64 `json:"spatial,omitempty"`
}

// Applied returns the values of all applied factors in a fixed order.
func (f Factors) Applied() []float64 {
	out := []float64{f.Quality}
	for _, v := range []*float64{f.Preference, f.Context, f.Spatial} {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// ScoredCandidate is a ranked recommendation.
type ScoredCandidate struct {
	Candidate        Candidate `json:"-"`
	RecommendationID string    `json:"recommendationId"`
	Score            float64   `json:"score"`
	Factors          Factors   `json:"factors"`
	Explanations     []string  `json:"explanations"`
	Confidence       float64   `json:"confidence"`
}
