package store

import (
	"hash/fnv"
	"sort"
	"strings"
)

// sparseBuckets bounds the hashed term space for sparse vectors.
const sparseBuckets = 1 << 20

// EncodeSparse converts text into a hashed bag-of-words sparse vector:
// lowercase whitespace tokens hashed into a fixed bucket space with raw
// counts as values. Deterministic, so index-time and query-time encodings
// agree.
func EncodeSparse(text string) (indices []uint32, values []float32) {
	counts := make(map[uint32]float32)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(token))
		counts[h.Sum32()%sparseBuckets]++
	}

	indices = make([]uint32, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values = make([]float32, len(indices))
	for i, idx := range indices {
		values[i] = counts[idx]
	}
	return indices, values
}
