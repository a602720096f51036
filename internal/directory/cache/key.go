package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// KeyParams are the inputs of a directory lookup that determine its result.
type KeyParams struct {
	ProductTypes    []string `json:"product_types"`
	ServiceTypes    []string `json:"service_types"`
	HealthThreshold string   `json:"health_threshold"`
}

// GenerateKey returns a deterministic SHA256 key for p. Type lists are compared as
// sets: order, case and duplicates do not change the key.
func GenerateKey(p KeyParams) string {
	normalized := KeyParams{
		ProductTypes:    normalizeSet(p.ProductTypes),
		ServiceTypes:    normalizeSet(p.ServiceTypes),
		HealthThreshold: strings.ToUpper(strings.TrimSpace(p.HealthThreshold)),
	}
	// Marshal of a struct of strings cannot fail.
	data, _ := json.Marshal(normalized)
	sum := sha256.Sum256(data)
	return "directory:" + hex.EncodeToString(sum[:])
}

func normalizeSet(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
