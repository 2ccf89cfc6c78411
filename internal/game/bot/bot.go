// Package bot plays the opponent seat in single-player rooms. It picks
// uniformly among the engine's candidate moves and commits to a
// stop-or-continue answer for every possible stepping trial before the trial
// is drawn.
package bot

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/cerke-online/backend/internal/core/trial"
	"github.com/cerke-online/backend/internal/game/domain"
	"github.com/cerke-online/backend/internal/game/session"
)

// Plan is one decided move, including the precomputed half-acceptance answer
// for each stepping trial count.
type Plan struct {
	Move domain.Move
	// Tactics labels the strategy that produced the plan.
	Tactics string
	// AcceptanceByCount maps a stepping trial count to the destination to
	// settle on. A nil entry stops at the origin. Only meaningful for
	// stepping moves.
	AcceptanceByCount [trial.Width + 1]*domain.Coord
}

// Bot drives one seat of a session.
type Bot struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a bot with its own random source.
func New(rng *rand.Rand) *Bot {
	return &Bot{rng: rng}
}

// Plan picks a move for the current position. ok is false when the session
// offers no candidates.
func (b *Bot) Plan(s *session.Session) (Plan, bool) {
	candidates := s.Candidates()
	if len(candidates) == 0 {
		return Plan{}, false
	}

	b.mu.Lock()
	mv := candidates[b.rng.Intn(len(candidates))]
	b.mu.Unlock()

	plan := Plan{Move: mv, Tactics: "neutral"}
	if stepping, ok := mv.(domain.SteppingMove); ok {
		reach := domain.Distance(stepping.Step, stepping.PlannedDirection)
		for count := 0; count <= trial.Width; count++ {
			if reach <= count {
				dest := stepping.PlannedDirection
				plan.AcceptanceByCount[count] = &dest
			}
		}
	}
	return plan, true
}

// Play makes at most one move for the given side: it settles any hand
// decision the side owes, then, if it is the side's turn, plans and commits
// a move and resolves the position behind it.
func (b *Bot) Play(s *session.Session, side domain.Side) error {
	if ended, _ := s.Ended(); ended {
		return nil
	}

	if s.Phase() == session.PhaseMoveApplied {
		out, err := s.ResolveHand()
		if err != nil {
			return fmt.Errorf("resolve standing position: %w", err)
		}
		switch out.Kind {
		case session.HandGameEnd:
			return nil
		case session.HandPending:
			if s.WhoseTurn() != side {
				// The opponent owes the decision; nothing to do.
				return nil
			}
			// Always continues; never demands a new season.
			if err := s.AcceptAsIs(side); err != nil {
				return fmt.Errorf("accept hand: %w", err)
			}
		}
	}

	if s.Phase() != session.PhaseAwaitingMove || s.WhoseTurn() != side {
		return nil
	}

	plan, ok := b.Plan(s)
	if !ok {
		if s.Phase() != session.PhaseAwaitingMove || s.WhoseTurn() != side {
			// Another poll took the turn meanwhile.
			return nil
		}
		return fmt.Errorf("no candidate moves for %s", side)
	}

	if stepping, isStepping := plan.Move.(domain.SteppingMove); isStepping {
		out, err := s.BeginSteppingMove(side, stepping)
		if err != nil {
			return fmt.Errorf("stepping move: %w", err)
		}
		if _, err := s.ResolveHalfAcceptance(side, plan.AcceptanceByCount[out.Stepping.Count()]); err != nil {
			return fmt.Errorf("half acceptance: %w", err)
		}
	} else {
		if _, err := s.ApplySimpleMove(side, plan.Move); err != nil {
			return fmt.Errorf("simple move: %w", err)
		}
	}

	out, err := s.ResolveHand()
	if err != nil {
		return fmt.Errorf("resolve own move: %w", err)
	}
	if out.Kind == session.HandPending && s.WhoseTurn() == side {
		if err := s.AcceptAsIs(side); err != nil {
			return fmt.Errorf("accept own hand: %w", err)
		}
	}
	return nil
}
