package domain

// Move is a player-submitted move descriptor, one of the five concrete kinds
// below. The session machine treats moves as opaque beyond their kind: rule
// legality is the engine collaborator's concern.
type Move interface {
	// Kind returns the wire tag of the descriptor.
	Kind() MoveKind
}

// MoveKind tags the concrete type of a Move.
type MoveKind string

// Move kinds. The values double as the "type" tags on the wire.
const (
	KindFromHand MoveKind = "FromHand"
	KindSrcDst   MoveKind = "SrcDst"
	KindSrcStep  MoveKind = "SrcStepDstFinite"
	KindStepping MoveKind = "InfAfterStep"
	KindTam      MoveKind = "TamMove"
)

// FromHandMove places a captured piece from the mover's reserve onto an
// empty square.
type FromHandMove struct {
	Color      Color
	Profession Profession
	Dest       Coord
}

// Kind implements Move.
func (FromHandMove) Kind() MoveKind { return KindFromHand }

// SrcDstMove slides a piece from one square to another.
type SrcDstMove struct {
	Src  Coord
	Dest Coord
}

// Kind implements Move.
func (SrcDstMove) Kind() MoveKind { return KindSrcDst }

// SrcStepDstMove slides a piece over an occupied intermediate square to a
// destination the mover names outright.
type SrcStepDstMove struct {
	Src  Coord
	Step Coord
	Dest Coord
}

// Kind implements Move.
func (SrcStepDstMove) Kind() MoveKind { return KindSrcStep }

// SteppingMove starts a move whose final extent depends on a stepping trial:
// the piece steps over an occupied square toward a planned direction, and the
// trial decides how far it may actually travel.
type SteppingMove struct {
	Src              Coord
	Step             Coord
	PlannedDirection Coord
}

// Kind implements Move.
func (SteppingMove) Kind() MoveKind { return KindStepping }

// TamStepStyle distinguishes the three shapes of a Tam move.
type TamStepStyle string

// Tam step styles. The values double as the "stepStyle" tags on the wire.
const (
	TamNoStep            TamStepStyle = "NoStep"
	TamStepsDuringFormer TamStepStyle = "StepsDuringFormer"
	TamStepsDuringLatter TamStepStyle = "StepsDuringLatter"
)

// TamMove moves the shared Tam piece in two stages, optionally stepping over
// a piece during either stage. Step is nil for the NoStep style.
type TamMove struct {
	Style      TamStepStyle
	Src        Coord
	Step       *Coord
	FirstDest  Coord
	SecondDest Coord
}

// Kind implements Move.
func (TamMove) Kind() MoveKind { return KindTam }
