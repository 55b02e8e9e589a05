package dice

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// RandomSource is the entropy handle consumed by the roller.
// Implementations need not be safe for concurrent use; give each
// goroutine its own source.
type RandomSource interface {
	IntN(n int) int // [0, n)
}

// crypto random : default generation method
type cryptoRNG struct{}

func (cryptoRNG) IntN(n int) int {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err != nil {
		// back to math/rand/v2
		return rand.IntN(n)
	}
	u := binary.BigEndian.Uint64(buf[:]) >> 11 // 53 bits
	return int(float64(u) / (1 << 53) * float64(n))
}

func DefaultRNG() RandomSource { return cryptoRNG{} }

// Replicable RNG (tests, reproducible batch runs)
type seededRNG struct{ r *rand.Rand }

func NewSeededRNG(seed uint64) RandomSource {
	return NewStreamRNG(seed, 0)
}

// NewStreamRNG returns a PCG source for one of several independent streams
// sharing a base seed, e.g. one stream per worker.
func NewStreamRNG(seed, stream uint64) RandomSource {
	return &seededRNG{r: rand.New(rand.NewPCG(seed, stream))}
}

func (s *seededRNG) IntN(n int) int { return s.r.IntN(n) }

// NewSeed draws a fresh base seed from crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := cryptoRand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
