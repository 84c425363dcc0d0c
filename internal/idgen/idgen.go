package idgen

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

const (
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	idLength = 16
)

// Generator produces prefixed identifiers such as order_Xy3... from a
// seedable source. Collisions are not checked here; the primary key is the
// only guard.
type Generator struct {
	mu   sync.Mutex
	rand *rand.Rand
	seed uint64
}

// New returns a generator seeded with seed, or with the clock when seed is 0.
func New(seed uint64) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{
		rand: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		seed: seed,
	}
}

func (g *Generator) Seed() uint64 {
	return g.seed
}

func (g *Generator) NewID(prefix string) string {
	var sb strings.Builder
	sb.Grow(len(prefix) + idLength)
	sb.WriteString(prefix)

	g.mu.Lock()
	defer g.mu.Unlock()

	for range idLength {
		sb.WriteByte(alphabet[g.rand.IntN(len(alphabet))])
	}
	return sb.String()
}
