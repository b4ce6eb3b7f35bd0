package businessflow

import (
	crand "crypto/rand"
	"encoding/binary"
	"math"
	"math/rand/v2"
	"sync"
)

// RandomSource yields uniform values; tests inject fixed sequences
type RandomSource interface {
	// Float64 returns a value in [0, 1)
	Float64() float64
	// IntN returns a value in [0, n)
	IntN(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// NewRandomSource returns a goroutine-safe ChaCha8 generator seeded from crypto/rand
func NewRandomSource() RandomSource {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		// crypto/rand.Read does not fail on supported platforms
		binary.LittleEndian.PutUint64(seed[:], rand.Uint64())
	}
	return &lockedRand{r: rand.New(rand.NewChaCha8(seed))}
}

// CatalogCard is an active card template reduced to what a weighted draw needs
type CatalogCard struct {
	ID     uint    `json:"id"`
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

// EffectiveWeight returns the candidate weight, or 1 when it is missing or unusable
func (c CatalogCard) EffectiveWeight() float64 {
	if c.Weight <= 0 || math.IsNaN(c.Weight) || math.IsInf(c.Weight, 0) {
		return 1
	}
	return c.Weight
}

// PickWeighted returns candidates[i] with probability w[i]/sum(w)
func PickWeighted(candidates []CatalogCard, src RandomSource) (CatalogCard, error) {
	if len(candidates) == 0 {
		return CatalogCard{}, ErrEmptyCandidateSet
	}

	total := 0.0
	for _, c := range candidates {
		total += c.EffectiveWeight()
	}

	remaining := src.Float64() * total
	for _, c := range candidates {
		remaining -= c.EffectiveWeight()
		if remaining <= 0 {
			return c, nil
		}
	}

	// float rounding can leave a tiny positive remainder
	return candidates[len(candidates)-1], nil
}
