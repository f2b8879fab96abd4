package match

import (
	"sort"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
)

// Pair is a candidate comparison between two records, by index into the
// batch. I < J always.
type Pair struct {
	I, J int
}

// Block returns the candidate pairs of a batch: records that agree exactly on
// brand or on category. With fallback set, records lacking both brand and
// category are also compared with each other. Pairs are unique and ordered
// by (I, J).
func Block(recs []model.NormalizedRecord, fallback bool) []Pair {
	byBrand := make(map[string][]int)
	byCategory := make(map[string][]int)
	var sparse []int

	for i, r := range recs {
		if r.Brand != "" {
			byBrand[r.Brand] = append(byBrand[r.Brand], i)
		}
		if r.Category != "" {
			byCategory[r.Category] = append(byCategory[r.Category], i)
		}
		if r.Brand == "" && r.Category == "" {
			sparse = append(sparse, i)
		}
	}

	seen := make(map[Pair]struct{})
	add := func(members []int) {
		for x := 0; x < len(members); x++ {
			for y := x + 1; y < len(members); y++ {
				seen[Pair{I: members[x], J: members[y]}] = struct{}{}
			}
		}
	}
	for _, members := range byBrand {
		add(members)
	}
	for _, members := range byCategory {
		add(members)
	}
	if fallback {
		add(sparse)
	}

	pairs := make([]Pair, 0, len(seen))
	for p := range seen {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].I != pairs[b].I {
			return pairs[a].I < pairs[b].I
		}
		return pairs[a].J < pairs[b].J
	})
	return pairs
}
