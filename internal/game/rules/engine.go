// Package rules defines the boundary to the board-rule engine.
//
// The engine is a collaborator: it owns move legality, captures, scoring and
// hand detection. The session machine consumes this interface and never
// inspects engine state beyond what State exposes. Trials are drawn by the
// caller; the engine only reports which branch each outcome belongs to, so
// all randomness stays injectable.
package rules

import (
	"math/rand"

	"github.com/cerke-online/backend/internal/game/domain"
)

// State is the engine's authoritative match position. Implementations are
// owned by a single session and mutated only through Engine calls made under
// that session's lock.
type State interface {
	// WhoseTurn returns the side to move.
	WhoseTurn() domain.Side
	// Season returns the current season index, 0-based.
	Season() int
}

// Outcome is the engine's answer to a move that may hinge on a water-entry
// trial. When no trial is involved, Certain holds the next state and the
// branch fields are nil.
type Outcome struct {
	Certain State
	// Success and Failure are the next states for the two branches of a
	// water-entry trial. They are set exactly when Certain is nil.
	Success State
	Failure State
}

// RequiresWaterEntry reports whether the caller must draw a water-entry
// trial to pick a branch.
func (o Outcome) RequiresWaterEntry() bool {
	return o.Certain == nil
}

// Pick selects the branch the drawn trial lands on. It must only be called
// when RequiresWaterEntry is true.
func (o Outcome) Pick(succeeded bool) State {
	if succeeded {
		return o.Success
	}
	return o.Failure
}

// HalfOutcome is the engine's answer to a half-acceptance choice. Settled is
// the square the moving piece actually elected: the chosen destination when
// continuing, or the origin square when stopping early.
type HalfOutcome struct {
	Outcome
	Settled domain.Coord
}

// ResolutionKind classifies what a completed move means for the hand.
type ResolutionKind int

// Resolution kinds.
const (
	// ResolutionContinues: no decision is owed; play proceeds within the
	// same season.
	ResolutionContinues ResolutionKind = iota
	// ResolutionHandExists: the mover completed a hand and owes a
	// continue-or-restart decision.
	ResolutionHandExists
	// ResolutionGameEnds: the match ended outright.
	ResolutionGameEnds
)

// Resolution describes the position after a committed move.
type Resolution struct {
	Kind ResolutionKind

	// Next is the state play continues from (ResolutionContinues only).
	Next State

	// IfTyMok is the state play continues from when the mover accepts the
	// position as is (ResolutionHandExists only).
	IfTyMok State

	// IfTaXotNext holds the equally likely starting layouts of the next
	// season when the mover demands a restart (ResolutionHandExists only;
	// empty when the restart itself ends the match).
	IfTaXotNext []State

	// IfTaXotVictor is set when demanding a restart ends the match
	// instead of opening a new season.
	IfTaXotVictor *domain.Side

	// Victor is the winning side for ResolutionGameEnds; nil means a draw.
	Victor *domain.Side
}

// Engine is the board-rule collaborator consumed by the session machine.
// All calls are synchronous and non-blocking; implementations must not
// retain the rand source beyond the call.
type Engine interface {
	// Initial returns a fresh season-0 state, picking uniformly among the
	// configured equally-probable starting layouts.
	Initial(rng *rand.Rand) State

	// ApplyNormalMove validates and applies a non-stepping move. A rules
	// violation is reported as an error and leaves the state untouched.
	ApplyNormalMove(s State, mv domain.Move) (Outcome, error)

	// BeginStepMove validates a stepping move and advances the state using
	// the already-drawn stepping trial. The returned state awaits the
	// mover's half-acceptance choice.
	BeginStepMove(s State, mv domain.SteppingMove, stepping int) (State, error)

	// ApplyHalfAcceptance settles an in-flight stepping move. dest nil
	// means the mover stops early; otherwise dest must be reachable under
	// the stepping trial recorded by BeginStepMove.
	ApplyHalfAcceptance(s State, dest *domain.Coord) (HalfOutcome, error)

	// Resolve classifies the position after a committed move.
	Resolve(s State) Resolution

	// Candidates enumerates moves the side to move could submit. Used by
	// the bot synthesizer; the list need not be exhaustive but every entry
	// must be accepted by the corresponding Apply call.
	Candidates(s State) []domain.Move
}
