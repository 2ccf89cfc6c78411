// Package session implements the per-room game-session state machine.
//
// A Session owns the authoritative rules-engine state, the current phase and
// the per-season move ledger. Every operation holds the session's exclusive
// lock for its full duration; engine calls are synchronous, so the lock is
// never held across a suspension point.
//
// Expected failures (wrong phase, rules violations) leave the session
// untouched so the caller may retry with a corrected descriptor. Invariant
// violations surface as CORRUPT_SESSION errors and mean the room is beyond
// repair.
package session

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/cerke-online/backend/internal/core/firstmover"
	"github.com/cerke-online/backend/internal/core/trial"
	"github.com/cerke-online/backend/internal/game/domain"
	"github.com/cerke-online/backend/internal/game/rules"
	"github.com/cerke-online/backend/internal/platform/apperr"
)

// Phase is the state of a session's move protocol.
type Phase int

const (
	// PhaseAwaitingMove: the engine state is ready for a move.
	PhaseAwaitingMove Phase = iota
	// PhaseAwaitingStepRoll: a stepping move has been accepted but its
	// stepping trial has not been drawn. The phase is transient; the
	// trial is drawn inside BeginSteppingMove under the same lock, so it
	// is never observable between operations.
	PhaseAwaitingStepRoll
	// PhaseAwaitingHalfAcceptance: the stepping trial is drawn; the mover
	// owes a stop-or-continue choice.
	PhaseAwaitingHalfAcceptance
	// PhaseMoveApplied: a move has been fully committed; hand resolution
	// is pending.
	PhaseMoveApplied
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseAwaitingMove:
		return "AwaitingMove"
	case PhaseAwaitingStepRoll:
		return "AwaitingStepRoll"
	case PhaseAwaitingHalfAcceptance:
		return "AwaitingHalfAcceptance"
	case PhaseMoveApplied:
		return "MoveApplied"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// MoveOutcome reports the trials a move operation drew, if any.
type MoveOutcome struct {
	// WaterEntry is set when the move required a water-entry trial.
	WaterEntry *trial.Trial
	// Stepping is set by BeginSteppingMove.
	Stepping *trial.Trial
}

// HandKind classifies the result of ResolveHand.
type HandKind int

const (
	// HandNone: no decision owed; play advanced to the next move.
	HandNone HandKind = iota
	// HandPending: the mover completed a hand and owes a decision.
	HandPending
	// HandGameEnd: the match ended outright.
	HandGameEnd
)

// HandOutcome is the result of ResolveHand.
type HandOutcome struct {
	Kind   HandKind
	Victor *domain.Side // HandGameEnd only; nil means a draw
}

// SeasonOutcome is the result of DemandNewSeason.
type SeasonOutcome struct {
	// GameEnded is set when the restart alternative was itself a victory.
	GameEnded bool
	Victor    *domain.Side
	// FirstMover is the fresh decision for the new season, expressed from
	// the IA owner's perspective. Nil when the game ended.
	FirstMover *firstmover.Decision
}

type pendingStep struct {
	move  domain.SteppingMove
	trial trial.Trial
}

// Session is the state machine of one room.
type Session struct {
	mu     sync.Mutex
	engine rules.Engine
	rng    *rand.Rand

	phase Phase
	state rules.State

	ledger     [domain.SeasonCount][]domain.MoveRecord
	firstMover [domain.SeasonCount]*firstmover.Decision

	pendingStep *pendingStep
	pendingHand *rules.Resolution

	ended  bool
	victor *domain.Side
}

// New creates a session on a fresh season-0 engine state and computes the
// season-0 first-mover decision. The rand source becomes owned by the
// session and must not be shared.
func New(engine rules.Engine, rng *rand.Rand) *Session {
	s := &Session{
		engine: engine,
		rng:    rng,
		phase:  PhaseAwaitingMove,
	}
	s.state = engine.Initial(rng)
	s.setFirstMoverLocked(0)
	return s
}

// setFirstMoverLocked draws a first-mover contest and stores it aligned with
// the engine state's side to move, expressed from the IA owner's view.
func (s *Session) setFirstMoverLocked(season int) {
	d := firstmover.Compute(s.rng)
	iaStarts := s.state.WhoseTurn() == domain.SideIA
	if d.Result != iaStarts {
		d = d.Not()
	}
	s.firstMover[season] = &d
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// WhoseTurn returns the side to move.
func (s *Session) WhoseTurn() domain.Side {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.WhoseTurn()
}

// Season returns the current season index.
func (s *Session) Season() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Season()
}

// Ended reports whether the match is over and, if so, the victor (nil for a
// draw).
func (s *Session) Ended() (bool, *domain.Side) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended, s.victor
}

// FirstMover returns the first-mover decision of a season from the given
// perspective. ok is false when the season has not started.
func (s *Session) FirstMover(iaDown bool, season int) (firstmover.Decision, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if season < 0 || season >= domain.SeasonCount || s.firstMover[season] == nil {
		return firstmover.Decision{}, false
	}
	d := *s.firstMover[season]
	if !iaDown {
		d = d.Not()
	}
	return d, true
}

// LastRecord returns a copy of the most recent ledger record of a season.
func (s *Session) LastRecord(season int) (domain.MoveRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if season < 0 || season >= domain.SeasonCount || len(s.ledger[season]) == 0 {
		return domain.MoveRecord{}, false
	}
	return s.ledger[season][len(s.ledger[season])-1], true
}

// Records returns a copy of a season's ledger.
func (s *Session) Records(season int) []domain.MoveRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if season < 0 || season >= domain.SeasonCount {
		return nil
	}
	out := make([]domain.MoveRecord, len(s.ledger[season]))
	copy(out, s.ledger[season])
	return out
}

// Candidates returns the engine's candidate moves for the side to move, or
// nil when the session is not awaiting a move.
func (s *Session) Candidates() []domain.Move {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended || s.phase != PhaseAwaitingMove {
		return nil
	}
	return s.engine.Candidates(s.state)
}

// ApplySimpleMove validates and commits a non-stepping move by the given
// side. Valid only in AwaitingMove on that side's turn. When the engine
// reports a water entry, the trial is drawn exactly once, embedded in the
// record, and never redrawn.
func (s *Session) ApplySimpleMove(by domain.Side, mv domain.Move) (MoveOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mv.Kind() == domain.KindStepping {
		return MoveOutcome{}, apperr.New(apperr.CodeRulesViolation, "stepping moves must be submitted through BeginSteppingMove")
	}
	if s.ended || s.phase != PhaseAwaitingMove {
		return MoveOutcome{}, wrongPhase("move", s.phase)
	}
	if by != s.state.WhoseTurn() {
		return MoveOutcome{}, notYourTurn()
	}

	season := s.state.Season()
	mover := by

	outcome, err := s.engine.ApplyNormalMove(s.state, mv)
	if err != nil {
		return MoveOutcome{}, apperr.Wrap(apperr.CodeRulesViolation, err.Error(), err)
	}

	record := domain.MoveRecord{Move: mv, Mover: mover}
	var result MoveOutcome
	if outcome.RequiresWaterEntry() {
		t := trial.Draw(s.rng)
		record.WaterEntry = &t
		result.WaterEntry = &t
		s.state = outcome.Pick(t.WaterEntrySucceeds())
	} else {
		if outcome.Certain == nil {
			return MoveOutcome{}, corrupt("engine returned no next state for a certain move")
		}
		s.state = outcome.Certain
	}

	s.ledger[season] = append(s.ledger[season], record)
	s.phase = PhaseMoveApplied
	return result, nil
}

// BeginSteppingMove starts a move whose extent depends on a stepping trial.
// Valid only in AwaitingMove on the given side's turn. On success a
// provisional record with an empty final result is appended and the session
// awaits the half-acceptance choice.
func (s *Session) BeginSteppingMove(by domain.Side, mv domain.SteppingMove) (MoveOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended || s.phase != PhaseAwaitingMove {
		return MoveOutcome{}, wrongPhase("stepping move", s.phase)
	}
	if by != s.state.WhoseTurn() {
		return MoveOutcome{}, notYourTurn()
	}

	season := s.state.Season()
	mover := by

	s.phase = PhaseAwaitingStepRoll
	t := trial.Draw(s.rng)

	next, err := s.engine.BeginStepMove(s.state, mv, t.Count())
	if err != nil {
		s.phase = PhaseAwaitingMove
		return MoveOutcome{}, apperr.Wrap(apperr.CodeRulesViolation, err.Error(), err)
	}

	s.ledger[season] = append(s.ledger[season], domain.MoveRecord{
		Move:          mv,
		Mover:         mover,
		SteppingTrial: &t,
		Status:        domain.StatusUndetermined,
	})
	s.pendingStep = &pendingStep{move: mv, trial: t}
	s.state = next
	s.phase = PhaseAwaitingHalfAcceptance
	return MoveOutcome{Stepping: &t}, nil
}

// ResolveHalfAcceptance settles the in-flight stepping move; only the side
// that began it may decide. Valid only in AwaitingHalfAcceptance. dest nil
// stops at the origin; a non-nil dest must be reachable under the stepping
// trial (higher count, farther reach). The provisional record's final result
// is filled in either way.
func (s *Session) ResolveHalfAcceptance(by domain.Side, dest *domain.Coord) (MoveOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended || s.phase != PhaseAwaitingHalfAcceptance {
		return MoveOutcome{}, wrongPhase("half acceptance", s.phase)
	}
	if s.pendingStep == nil {
		return MoveOutcome{}, corrupt("awaiting half acceptance without a pending stepping move")
	}
	if by != s.state.WhoseTurn() {
		return MoveOutcome{}, notYourTurn()
	}

	if dest != nil && domain.Distance(s.pendingStep.move.Step, *dest) > s.pendingStep.trial.Count() {
		return MoveOutcome{}, apperr.New(apperr.CodeRulesViolation,
			fmt.Sprintf("destination %s is out of reach for a stepping trial of %d", dest, s.pendingStep.trial.Count()))
	}

	outcome, err := s.engine.ApplyHalfAcceptance(s.state, dest)
	if err != nil {
		return MoveOutcome{}, apperr.Wrap(apperr.CodeRulesViolation, err.Error(), err)
	}

	season := s.state.Season()
	if len(s.ledger[season]) == 0 {
		return MoveOutcome{}, corrupt("half acceptance with an empty ledger")
	}
	record := &s.ledger[season][len(s.ledger[season])-1]
	if record.SteppingTrial == nil || record.FinalResult != nil {
		return MoveOutcome{}, corrupt("half acceptance does not match the pending ledger record")
	}

	final := &domain.FinalResult{Dest: outcome.Settled}
	var result MoveOutcome
	if outcome.RequiresWaterEntry() {
		t := trial.Draw(s.rng)
		final.WaterEntry = &t
		result.WaterEntry = &t
		if !t.WaterEntrySucceeds() {
			final.Thwarted = &t
		}
		s.state = outcome.Pick(t.WaterEntrySucceeds())
	} else {
		if outcome.Certain == nil {
			return MoveOutcome{}, corrupt("engine returned no next state for a certain half acceptance")
		}
		s.state = outcome.Certain
	}

	record.FinalResult = final
	s.pendingStep = nil
	s.phase = PhaseMoveApplied
	return result, nil
}

// ResolveHand classifies the position after a committed move. Valid only in
// MoveApplied. When a decision is owed, the triggering record's completion
// status is set to NotYetDetermined and the session stays in MoveApplied
// until AcceptAsIs or DemandNewSeason arrives.
func (s *Session) ResolveHand() (HandOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return HandOutcome{Kind: HandGameEnd, Victor: s.victor}, nil
	}
	if s.phase != PhaseMoveApplied {
		return HandOutcome{}, wrongPhase("hand resolution", s.phase)
	}
	if s.pendingHand != nil {
		// Already classified; the decision is still owed.
		return HandOutcome{Kind: HandPending}, nil
	}

	res := s.engine.Resolve(s.state)
	switch res.Kind {
	case rules.ResolutionContinues:
		if res.Next == nil {
			return HandOutcome{}, corrupt("resolution continues without a next state")
		}
		s.state = res.Next
		s.phase = PhaseAwaitingMove
		return HandOutcome{Kind: HandNone}, nil

	case rules.ResolutionHandExists:
		season := s.state.Season()
		if len(s.ledger[season]) == 0 {
			return HandOutcome{}, corrupt("hand completed with an empty ledger")
		}
		s.ledger[season][len(s.ledger[season])-1].Status = domain.StatusUndetermined
		pending := res
		s.pendingHand = &pending
		return HandOutcome{Kind: HandPending}, nil

	case rules.ResolutionGameEnds:
		s.ended = true
		s.victor = res.Victor
		return HandOutcome{Kind: HandGameEnd, Victor: res.Victor}, nil

	default:
		return HandOutcome{}, corrupt(fmt.Sprintf("unknown resolution kind %d", res.Kind))
	}
}

// AcceptAsIs commits the continue alternative of a pending hand decision.
// Only the side that completed the hand may decide.
func (s *Session) AcceptAsIs(by domain.Side) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkDecisionLocked(by); err != nil {
		return err
	}
	if s.pendingHand.IfTyMok == nil {
		return corrupt("pending hand without a continue alternative")
	}

	season := s.state.Season()
	s.ledger[season][len(s.ledger[season])-1].Status = domain.StatusTyMok
	s.state = s.pendingHand.IfTyMok
	s.pendingHand = nil
	s.phase = PhaseAwaitingMove
	return nil
}

// DemandNewSeason commits the restart alternative of a pending hand
// decision. When the restart is itself a victory, the match ends; otherwise
// a next-season layout is picked uniformly and a fresh first-mover decision
// is drawn.
func (s *Session) DemandNewSeason(by domain.Side) (SeasonOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkDecisionLocked(by); err != nil {
		return SeasonOutcome{}, err
	}

	season := s.state.Season()
	s.ledger[season][len(s.ledger[season])-1].Status = domain.StatusTaXot

	if s.pendingHand.IfTaXotVictor != nil {
		victor := s.pendingHand.IfTaXotVictor
		s.ended = true
		s.victor = victor
		s.pendingHand = nil
		return SeasonOutcome{GameEnded: true, Victor: victor}, nil
	}

	layouts := s.pendingHand.IfTaXotNext
	if len(layouts) == 0 {
		return SeasonOutcome{}, corrupt("pending hand with neither a next season nor a victor")
	}
	s.state = layouts[s.rng.Intn(len(layouts))]
	s.pendingHand = nil

	next := s.state.Season()
	if next < 0 || next >= domain.SeasonCount {
		return SeasonOutcome{}, corrupt(fmt.Sprintf("engine advanced to season %d", next))
	}
	s.setFirstMoverLocked(next)
	s.phase = PhaseAwaitingMove

	d := *s.firstMover[next]
	return SeasonOutcome{FirstMover: &d}, nil
}

// checkDecisionLocked validates that a hand decision is owed and that the
// caller is the side allowed to take it.
func (s *Session) checkDecisionLocked(by domain.Side) error {
	if s.ended || s.pendingHand == nil {
		return wrongPhase("hand decision", s.phase)
	}
	if by != s.state.WhoseTurn() {
		return apperr.New(apperr.CodeWrongPhase, "the hand decision belongs to the opponent")
	}
	season := s.state.Season()
	if len(s.ledger[season]) == 0 {
		return corrupt("pending hand decision with an empty ledger")
	}
	return nil
}

func notYourTurn() error {
	return apperr.New(apperr.CodeWrongPhase, "it is not your turn")
}

func wrongPhase(op string, p Phase) error {
	return apperr.New(apperr.CodeWrongPhase, fmt.Sprintf("%s is not valid in phase %s", op, p))
}

func corrupt(msg string) error {
	return apperr.New(apperr.CodeCorruptSession, msg)
}
