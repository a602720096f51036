package recommend_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/s100fed/fedroute/internal/federation"
	"github.com/s100fed/fedroute/internal/geo"
	"github.com/s100fed/fedroute/internal/recommend"
)

func BenchmarkRank(b *testing.B) {
	products := []string{"S101", "S102", "S104", "S111"}
	cands := make([]federation.Candidate, 500)
	for i := range cands {
		c := candidate(fmt.Sprintf("cap-%d", i), fmt.Sprintf("node-%d", i), i%4,
			federation.HealthHealthy, products[i%len(products)], "WMS")
		cands[i] = withDataset(withCoverage(c, geo.BBox{100, 20, 130, 45}),
			"Harbour approach "+c.Capability.ProductType, "port approach charts", testNow)
	}
	rc := recommend.Context{
		History: []recommend.AccessRecord{{ProductType: "S101", ServiceType: "WMS", AccessCount: 12}},
		Text:    "port approach",
		BBox:    &geo.BBox{121, 31, 122, 32},
	}
	r := fixedRanker()
	ctx := context.Background()

	b.ReportAllocs()
	for b.Loop() {
		if got := r.Rank(ctx, cands, rc, 10); len(got) != 10 {
			b.Fatalf("got %d recommendations", len(got))
		}
	}
}
