package directory

import (
	"errors"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/s100fed/fedroute/internal/catalog"
	"github.com/s100fed/fedroute/internal/federation"
)

// ErrInvalidSnapshot is wrapped when a snapshot file cannot be read or parsed.
var ErrInvalidSnapshot = errors.New("invalid directory snapshot")

// Snapshot is the on-disk form of a federation directory.
//
// Example:
//
//	nodes:
//	  - id: global
//	    name: Global Root
//	    level: 0
//	    health: HEALTHY
//	    active: true
//	datasets:
//	  - id: ds-1
//	    product_type: S102
//	    status: PUBLISHED
//	    coverage: "120,30,122,32"
//	capabilities:
//	  - id: cap-1
//	    node_id: global
//	    product_type: S102
//	    service_type: WMS
//	    enabled: true
//	    endpoint: https://global.example.org/wms
//	    dataset_id: ds-1
type Snapshot struct {
	Nodes        []federation.Node       `yaml:"nodes"`
	Datasets     []federation.Dataset    `yaml:"datasets"`
	Capabilities []federation.Capability `yaml:"capabilities"`
}

// LoadSnapshot reads a YAML snapshot from path.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrInvalidSnapshot, path, err)
	}
	return ParseSnapshot(data)
}

// ParseSnapshot decodes a YAML snapshot.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	return &s, nil
}

// Candidates joins the snapshot into candidates. Records that break the data model
// (unknown node or dataset, duplicate capability key, invalid node, unknown product or
// service type) are dropped and reported as warnings; they never reach scoring.
//
//nolint:gocognit,funlen // Boundary validation of three record kinds.
func (s *Snapshot) Candidates(log zerolog.Logger) ([]federation.Candidate, []string) {
	var warnings []string
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		warnings = append(warnings, msg)
		log.Warn().Str("component", "directory").Str("operation", "load_snapshot").Msg(msg)
	}

	nodes := make(map[string]federation.Node, len(s.Nodes))
	for i, n := range s.Nodes {
		n.Health = federation.ParseHealthStatus(string(n.Health))
		if err := n.Validate(); err != nil {
			warn("nodes[%d]: %v", i, err)
			continue
		}
		if _, dup := nodes[n.ID]; dup {
			warn("nodes[%d]: duplicate node id %q", i, n.ID)
			continue
		}
		nodes[n.ID] = n
	}
	for id, n := range nodes {
		if n.ParentID != "" {
			if _, ok := nodes[n.ParentID]; !ok {
				warn("node %q: parent %q not found", id, n.ParentID)
			}
		}
	}

	datasets := make(map[string]federation.Dataset, len(s.Datasets))
	for i, d := range s.Datasets {
		if d.ID == "" {
			warn("datasets[%d]: id is required", i)
			continue
		}
		st, ok := federation.ParseDatasetStatus(string(d.Status))
		if !ok {
			warn("dataset %q: unknown status %q", d.ID, d.Status)
			continue
		}
		d.Status = st
		datasets[d.ID] = d
	}

	seen := make(map[string]string)
	out := make([]federation.Candidate, 0, len(s.Capabilities))
	for i, c := range s.Capabilities {
		if c.ID == "" {
			warn("capabilities[%d]: id is required", i)
			continue
		}
		if !catalog.IsValidProduct(c.ProductType) || !catalog.IsValidService(c.ServiceType) {
			warn("capability %q: unknown product/service %s/%s", c.ID, c.ProductType, c.ServiceType)
			continue
		}
		if err := federation.ValidateEndpoint(c.Endpoint); err != nil {
			warn("capability %q: %v", c.ID, err)
			continue
		}
		node, ok := nodes[c.NodeID]
		if !ok {
			warn("capability %q: node %q not found", c.ID, c.NodeID)
			continue
		}
		if prev, dup := seen[c.Key()]; dup {
			warn("capability %q: duplicate of %q for %s", c.ID, prev, c.Key())
			continue
		}
		seen[c.Key()] = c.ID
		c.Version = NormalizeVersion(c.Version)

		cand := federation.Candidate{Capability: c, Node: node}
		if c.DatasetID != "" {
			d, found := datasets[c.DatasetID]
			if !found {
				warn("capability %q: dataset %q not found", c.ID, c.DatasetID)
				continue
			}
			cand.Dataset = &d
		}
		out = append(out, cand)
	}
	return out, warnings
}

// NormalizeVersion canonicalizes a service version ("1.3" → "1.3.0"). Values that are not
// semantic versions become empty so they never leak into redirects.
func NormalizeVersion(v string) string {
	if v == "" {
		return ""
	}
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return ""
	}
	return parsed.String()
}
