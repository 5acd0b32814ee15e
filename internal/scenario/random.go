package scenario

import (
	"hash/fnv"
	"math/rand"
)

// SeedValue derives a stable 64-bit seed from a root seed and a label, so
// every team of a run gets its own reproducible stream.
func SeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

// NewRNG returns a random source seeded from rootSeed and label.
func NewRNG(rootSeed, label string) *rand.Rand {
	return rand.New(rand.NewSource(SeedValue(rootSeed, label)))
}
