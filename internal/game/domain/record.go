package domain

import "github.com/cerke-online/backend/internal/core/trial"

// SeasonCount is the number of seasons a match may span.
const SeasonCount = 4

// CompletionStatus records how the hand triggered by a move was resolved.
type CompletionStatus int

// Completion statuses. StatusNone means no hand-resolution outcome has been
// attached to the record yet.
const (
	StatusNone CompletionStatus = iota
	StatusUndetermined
	StatusTyMok
	StatusTaXot
)

// String returns the status name.
func (s CompletionStatus) String() string {
	switch s {
	case StatusUndetermined:
		return "NotYetDetermined"
	case StatusTyMok:
		return "TyMok"
	case StatusTaXot:
		return "TaXot"
	default:
		return "None"
	}
}

// FinalResult is the deferred outcome of a stepping move, filled in once the
// mover's half-acceptance choice has been applied.
type FinalResult struct {
	Dest Coord
	// WaterEntry is the water-entry trial, when the settled destination
	// required one.
	WaterEntry *trial.Trial
	// Thwarted is set to the same trial when it failed and the move was
	// cancelled by the water.
	Thwarted *trial.Trial
}

// MoveRecord is one entry of the per-season move ledger. Records are
// append-only: once committed, the only permitted mutation is filling the
// deferred stepping-move fields and the completion status.
type MoveRecord struct {
	Move  Move
	Mover Side
	// WaterEntry is the trial drawn for a simple move that entered water.
	WaterEntry *trial.Trial
	// SteppingTrial and FinalResult belong to stepping moves only.
	SteppingTrial *trial.Trial
	FinalResult   *FinalResult
	Status        CompletionStatus
}
