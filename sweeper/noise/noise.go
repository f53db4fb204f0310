// Package noise produces filler payloads for the radio sweep.
//
// The bytes come from a 64-bit linear congruential generator seeded with the
// wall clock. It is not a secure source; its only job is to make every
// transmitted packet look different on a spectrum analyser.
package noise

import "time"

const (
	multiplier = 1103515245
	increment  = 12345
)

// Generate returns n pseudo-random bytes seeded from the current time in
// nanoseconds. n <= 0 yields an empty slice.
func Generate(n int) []byte {
	return FromSeed(uint64(time.Now().UnixNano()), n)
}

// FromSeed returns n bytes derived from seed. The same seed always yields the
// same sequence.
func FromSeed(seed uint64, n int) []byte {
	if n < 0 {
		n = 0
	}
	buf := make([]byte, n)
	Fill(seed, buf)
	return buf
}

// Fill overwrites buf with the sequence for seed and returns the advanced
// seed so callers can continue the sequence without allocating.
func Fill(seed uint64, buf []byte) uint64 {
	for i := range buf {
		seed = seed*multiplier + increment // wraps mod 2^64
		buf[i] = byte(seed >> 16)
	}
	return seed
}

// Source fills payload buffers. The sweeper takes a Source so tests can
// supply fixed payloads.
type Source interface {
	Fill(buf []byte)
}

// Clock is a Source that reseeds from the wall clock on every call.
type Clock struct{}

// Fill implements Source.
func (Clock) Fill(buf []byte) {
	Fill(uint64(time.Now().UnixNano()), buf)
}
