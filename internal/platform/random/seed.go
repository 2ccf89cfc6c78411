// Package random provides cryptographic seed generation for the
// pseudo-random sources that drive sessions, trials and the bot.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// NewSeed generates a high-entropy seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// MustSeed returns a high-entropy seed, falling back to the wall clock when
// the system entropy source fails.
func MustSeed() int64 {
	seed, err := NewSeed()
	if err != nil {
		return time.Now().UnixNano()
	}
	return seed
}
