// Package trial implements the game's randomness primitive: a throw of five
// marked sticks, each landing mark-up or mark-down independently.
//
// A Trial is immutable once drawn. Randomness is always injected through a
// *rand.Rand so that callers (and tests) control determinism; nothing in this
// package reads from a global generator.
package trial

import "math/rand"

// Width is the number of sticks thrown in one trial.
const Width = 5

// WaterEntryThreshold is the minimum success count for a water-entry trial
// to succeed. A trial with fewer marks up thwarts the move.
const WaterEntryThreshold = 3

// Trial is one throw of the sticks, in throw order. It serializes as a
// fixed-length JSON array of booleans; the order is significant because
// clients animate the throw stick by stick.
type Trial [Width]bool

// Draw throws all sticks using the provided random source.
func Draw(rng *rand.Rand) Trial {
	var t Trial
	for i := range t {
		t[i] = rng.Intn(2) == 1
	}
	return t
}

// FromCount builds a trial with exactly count sticks up, at positions chosen
// uniformly by the provided random source. count is clamped to [0, Width].
func FromCount(rng *rand.Rand, count int) Trial {
	if count < 0 {
		count = 0
	}
	if count > Width {
		count = Width
	}
	var t Trial
	for i := 0; i < count; i++ {
		t[i] = true
	}
	rng.Shuffle(Width, func(i, j int) {
		t[i], t[j] = t[j], t[i]
	})
	return t
}

// Count returns the number of sticks that landed mark-up.
func (t Trial) Count() int {
	n := 0
	for _, up := range t {
		if up {
			n++
		}
	}
	return n
}

// WaterEntrySucceeds reports whether the trial clears the water-entry
// threshold.
func (t Trial) WaterEntrySucceeds() bool {
	return t.Count() >= WaterEntryThreshold
}
