// Package firstmover decides which player moves first in a season.
//
// Both players throw a trial; whoever scores strictly higher moves first.
// Ties are rethrown, and the full throw history is kept so clients can
// animate the contest.
package firstmover

import (
	"math/rand"

	"github.com/cerke-online/backend/internal/core/trial"
)

// Decision is the outcome of a first-mover contest, expressed from one
// player's perspective: Result is true when that player moves first.
//
// The last pair in Process always has unequal counts, and Result reflects
// whether the first trial of that pair scored higher.
type Decision struct {
	Result  bool             `json:"result"`
	Process [][2]trial.Trial `json:"process"`
}

// Compute runs the contest with the provided random source, rethrowing on
// ties until one side scores strictly higher.
//
// Termination is probabilistic: each round decides with probability ~72.5%,
// so an unbounded run is astronomically unlikely but not impossible. Pass a
// deterministic source in tests.
func Compute(rng *rand.Rand) Decision {
	var process [][2]trial.Trial
	for {
		mine := trial.Draw(rng)
		theirs := trial.Draw(rng)
		process = append(process, [2]trial.Trial{mine, theirs})
		if mine.Count() > theirs.Count() {
			return Decision{Result: true, Process: process}
		}
		if mine.Count() < theirs.Count() {
			return Decision{Result: false, Process: process}
		}
	}
}

// Not reexpresses the decision from the other player's perspective: every
// pair is swapped and the result inverted. No trials are redrawn.
func (d Decision) Not() Decision {
	process := make([][2]trial.Trial, len(d.Process))
	for i, pair := range d.Process {
		process[i] = [2]trial.Trial{pair[1], pair[0]}
	}
	return Decision{Result: !d.Result, Process: process}
}
