package session

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/cerke-online/backend/internal/game/domain"
	"github.com/cerke-online/backend/internal/game/rules"
	"github.com/cerke-online/backend/internal/platform/apperr"
)

type fakeState struct {
	name   string
	turn   domain.Side
	season int
}

func (f fakeState) WhoseTurn() domain.Side { return f.turn }
func (f fakeState) Season() int            { return f.season }

// fakeEngine scripts each rules call through a function field. Unset fields
// fall back to a permissive default.
type fakeEngine struct {
	initial    func(rng *rand.Rand) rules.State
	normal     func(s rules.State, mv domain.Move) (rules.Outcome, error)
	step       func(s rules.State, mv domain.SteppingMove, stepping int) (rules.State, error)
	half       func(s rules.State, dest *domain.Coord) (rules.HalfOutcome, error)
	resolve    func(s rules.State) rules.Resolution
	candidates func(s rules.State) []domain.Move
}

func (f *fakeEngine) Initial(rng *rand.Rand) rules.State {
	if f.initial != nil {
		return f.initial(rng)
	}
	return fakeState{name: "initial", turn: domain.SideIA}
}

func (f *fakeEngine) ApplyNormalMove(s rules.State, mv domain.Move) (rules.Outcome, error) {
	if f.normal != nil {
		return f.normal(s, mv)
	}
	return rules.Outcome{Certain: fakeState{name: "moved", turn: s.WhoseTurn(), season: s.Season()}}, nil
}

func (f *fakeEngine) BeginStepMove(s rules.State, mv domain.SteppingMove, stepping int) (rules.State, error) {
	if f.step != nil {
		return f.step(s, mv, stepping)
	}
	return fakeState{name: "stepping", turn: s.WhoseTurn(), season: s.Season()}, nil
}

func (f *fakeEngine) ApplyHalfAcceptance(s rules.State, dest *domain.Coord) (rules.HalfOutcome, error) {
	if f.half != nil {
		return f.half(s, dest)
	}
	settled := domain.Coord{Row: domain.RowO, Column: domain.ColumnZ}
	if dest != nil {
		settled = *dest
	}
	return rules.HalfOutcome{
		Outcome: rules.Outcome{Certain: fakeState{name: "halved", turn: s.WhoseTurn(), season: s.Season()}},
		Settled: settled,
	}, nil
}

func (f *fakeEngine) Resolve(s rules.State) rules.Resolution {
	if f.resolve != nil {
		return f.resolve(s)
	}
	return rules.Resolution{
		Kind: rules.ResolutionContinues,
		Next: fakeState{name: "next", turn: s.WhoseTurn().Opponent(), season: s.Season()},
	}
}

func (f *fakeEngine) Candidates(s rules.State) []domain.Move {
	if f.candidates != nil {
		return f.candidates(s)
	}
	return nil
}

func newTestSession(t *testing.T, engine rules.Engine, seed int64) *Session {
	t.Helper()
	return New(engine, rand.New(rand.NewSource(seed)))
}

func simpleMove() domain.Move {
	return domain.SrcDstMove{
		Src:  domain.Coord{Row: domain.RowAI, Column: domain.ColumnZ},
		Dest: domain.Coord{Row: domain.RowY, Column: domain.ColumnZ},
	}
}

func steppingMove() domain.SteppingMove {
	return domain.SteppingMove{
		Src:              domain.Coord{Row: domain.RowAI, Column: domain.ColumnZ},
		Step:             domain.Coord{Row: domain.RowY, Column: domain.ColumnZ},
		PlannedDirection: domain.Coord{Row: domain.RowO, Column: domain.ColumnZ},
	}
}

func wantCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("want error with code %s, got nil", code)
	}
	if got := apperr.CodeOf(err); got != code {
		t.Fatalf("want code %s, got %s (%v)", code, got, err)
	}
}

func TestNewSessionAlignsFirstMoverWithInitialTurn(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		for _, turn := range []domain.Side{domain.SideA, domain.SideIA} {
			engine := &fakeEngine{initial: func(*rand.Rand) rules.State {
				return fakeState{name: "initial", turn: turn}
			}}
			s := newTestSession(t, engine, seed)

			d, ok := s.FirstMover(true, 0)
			if !ok {
				t.Fatalf("seed %d: season 0 first mover missing", seed)
			}
			if want := turn == domain.SideIA; d.Result != want {
				t.Errorf("seed %d turn %s: IA-owner result = %v, want %v", seed, turn, d.Result, want)
			}
			flipped, _ := s.FirstMover(false, 0)
			if flipped.Result == d.Result {
				t.Errorf("seed %d: both perspectives report the same result", seed)
			}
		}
	}
}

func TestApplySimpleMoveWithoutWaterEntry(t *testing.T) {
	s := newTestSession(t, &fakeEngine{}, 1)

	out, err := s.ApplySimpleMove(domain.SideIA, simpleMove())
	if err != nil {
		t.Fatalf("ApplySimpleMove: %v", err)
	}
	if out.WaterEntry != nil || out.Stepping != nil {
		t.Errorf("unexpected trials in outcome: %+v", out)
	}
	if got := s.Phase(); got != PhaseMoveApplied {
		t.Errorf("phase = %s, want MoveApplied", got)
	}

	rec, ok := s.LastRecord(0)
	if !ok {
		t.Fatal("no ledger record after a committed move")
	}
	if rec.Mover != domain.SideIA {
		t.Errorf("mover = %s, want IASide", rec.Mover)
	}
	if rec.WaterEntry != nil || rec.SteppingTrial != nil || rec.FinalResult != nil {
		t.Errorf("unexpected trial data on record: %+v", rec)
	}
	if rec.Status != domain.StatusNone {
		t.Errorf("status = %s, want None", rec.Status)
	}
}

func TestApplySimpleMoveWaterEntryBranch(t *testing.T) {
	success := fakeState{name: "entered", turn: domain.SideIA}
	failure := fakeState{name: "repelled", turn: domain.SideIA}

	for seed := int64(0); seed < 50; seed++ {
		engine := &fakeEngine{normal: func(rules.State, domain.Move) (rules.Outcome, error) {
			return rules.Outcome{Success: success, Failure: failure}, nil
		}}
		s := newTestSession(t, engine, seed)

		out, err := s.ApplySimpleMove(domain.SideIA, simpleMove())
		if err != nil {
			t.Fatalf("seed %d: ApplySimpleMove: %v", seed, err)
		}
		if out.WaterEntry == nil {
			t.Fatalf("seed %d: water entry trial not drawn", seed)
		}

		rec, _ := s.LastRecord(0)
		if rec.WaterEntry == nil || *rec.WaterEntry != *out.WaterEntry {
			t.Fatalf("seed %d: record trial does not match returned trial", seed)
		}

		s.mu.Lock()
		name := s.state.(fakeState).name
		s.mu.Unlock()
		want := failure.name
		if out.WaterEntry.WaterEntrySucceeds() {
			want = success.name
		}
		if name != want {
			t.Errorf("seed %d: took branch %q for trial count %d", seed, name, out.WaterEntry.Count())
		}
	}
}

func TestApplySimpleMoveRejectsSteppingKind(t *testing.T) {
	s := newTestSession(t, &fakeEngine{}, 1)
	_, err := s.ApplySimpleMove(domain.SideIA, steppingMove())
	wantCode(t, err, apperr.CodeRulesViolation)
}

func TestApplySimpleMoveRulesViolationLeavesSessionUntouched(t *testing.T) {
	engine := &fakeEngine{normal: func(rules.State, domain.Move) (rules.Outcome, error) {
		return rules.Outcome{}, errors.New("occupied destination")
	}}
	s := newTestSession(t, engine, 1)

	_, err := s.ApplySimpleMove(domain.SideIA, simpleMove())
	wantCode(t, err, apperr.CodeRulesViolation)
	if got := s.Phase(); got != PhaseAwaitingMove {
		t.Errorf("phase = %s, want AwaitingMove", got)
	}
	if len(s.Records(0)) != 0 {
		t.Error("rejected move reached the ledger")
	}
}

func TestPhaseGuards(t *testing.T) {
	s := newTestSession(t, &fakeEngine{}, 1)

	if _, err := s.ResolveHalfAcceptance(domain.SideIA, nil); apperr.CodeOf(err) != apperr.CodeWrongPhase {
		t.Errorf("half acceptance in AwaitingMove: %v", err)
	}
	if _, err := s.ResolveHand(); apperr.CodeOf(err) != apperr.CodeWrongPhase {
		t.Errorf("hand resolution in AwaitingMove: %v", err)
	}
	if err := s.AcceptAsIs(domain.SideIA); apperr.CodeOf(err) != apperr.CodeWrongPhase {
		t.Errorf("TyMok without a pending hand: %v", err)
	}
	if _, err := s.DemandNewSeason(domain.SideIA); apperr.CodeOf(err) != apperr.CodeWrongPhase {
		t.Errorf("TaXot without a pending hand: %v", err)
	}

	if _, err := s.ApplySimpleMove(domain.SideIA, simpleMove()); err != nil {
		t.Fatalf("ApplySimpleMove: %v", err)
	}
	if _, err := s.ApplySimpleMove(domain.SideIA, simpleMove()); apperr.CodeOf(err) != apperr.CodeWrongPhase {
		t.Errorf("second move before hand resolution: %v", err)
	}
	if _, err := s.BeginSteppingMove(domain.SideIA, steppingMove()); apperr.CodeOf(err) != apperr.CodeWrongPhase {
		t.Errorf("stepping move in MoveApplied: %v", err)
	}
}

func TestMoveOperationsRejectTheWrongSide(t *testing.T) {
	s := newTestSession(t, &fakeEngine{}, 1)

	if _, err := s.ApplySimpleMove(domain.SideA, simpleMove()); apperr.CodeOf(err) != apperr.CodeWrongPhase {
		t.Errorf("simple move by the side not on turn: %v", err)
	}
	if _, err := s.BeginSteppingMove(domain.SideA, steppingMove()); apperr.CodeOf(err) != apperr.CodeWrongPhase {
		t.Errorf("stepping move by the side not on turn: %v", err)
	}
	if len(s.Records(0)) != 0 {
		t.Fatal("rejected moves reached the ledger")
	}

	if _, err := s.BeginSteppingMove(domain.SideIA, steppingMove()); err != nil {
		t.Fatalf("BeginSteppingMove: %v", err)
	}
	if _, err := s.ResolveHalfAcceptance(domain.SideA, nil); apperr.CodeOf(err) != apperr.CodeWrongPhase {
		t.Errorf("half acceptance by the opponent: %v", err)
	}
	if rec, _ := s.LastRecord(0); rec.FinalResult != nil {
		t.Error("opponent's half acceptance settled the move")
	}
}

func TestDuplicateMoveIsNotAttributedToTheOpponent(t *testing.T) {
	s := newTestSession(t, &fakeEngine{}, 1)

	if _, err := s.ApplySimpleMove(domain.SideIA, simpleMove()); err != nil {
		t.Fatalf("ApplySimpleMove: %v", err)
	}
	if _, err := s.ResolveHand(); err != nil {
		t.Fatalf("ResolveHand: %v", err)
	}
	if got := s.WhoseTurn(); got != domain.SideA {
		t.Fatalf("turn = %s, want ASide", got)
	}

	// A retried request from the original mover arrives after the turn
	// flipped. It must not commit as the opponent's move.
	if _, err := s.ApplySimpleMove(domain.SideIA, simpleMove()); apperr.CodeOf(err) != apperr.CodeWrongPhase {
		t.Fatalf("retried move after the turn flipped: %v", err)
	}
	records := s.Records(0)
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].Mover != domain.SideIA {
		t.Errorf("mover = %s, want IASide", records[0].Mover)
	}
}

func TestSteppingFlowStopEarly(t *testing.T) {
	s := newTestSession(t, &fakeEngine{}, 3)

	out, err := s.BeginSteppingMove(domain.SideIA, steppingMove())
	if err != nil {
		t.Fatalf("BeginSteppingMove: %v", err)
	}
	if out.Stepping == nil {
		t.Fatal("stepping trial not drawn")
	}
	if got := s.Phase(); got != PhaseAwaitingHalfAcceptance {
		t.Fatalf("phase = %s, want AwaitingHalfAcceptance", got)
	}

	rec, _ := s.LastRecord(0)
	if rec.SteppingTrial == nil || *rec.SteppingTrial != *out.Stepping {
		t.Fatal("provisional record does not carry the stepping trial")
	}
	if rec.FinalResult != nil {
		t.Fatal("provisional record already has a final result")
	}
	if rec.Status != domain.StatusUndetermined {
		t.Errorf("provisional status = %s, want NotYetDetermined", rec.Status)
	}

	if _, err := s.ResolveHalfAcceptance(domain.SideIA, nil); err != nil {
		t.Fatalf("ResolveHalfAcceptance(nil): %v", err)
	}
	rec, _ = s.LastRecord(0)
	if rec.FinalResult == nil {
		t.Fatal("final result missing after stop-early")
	}
	want := domain.Coord{Row: domain.RowO, Column: domain.ColumnZ}
	if rec.FinalResult.Dest != want {
		t.Errorf("stop-early dest = %s, want %s", rec.FinalResult.Dest, want)
	}
	if got := s.Phase(); got != PhaseMoveApplied {
		t.Errorf("phase = %s, want MoveApplied", got)
	}
}

func TestResolveHalfAcceptanceReachabilityGuard(t *testing.T) {
	mv := steppingMove()
	for seed := int64(0); seed < 50; seed++ {
		s := newTestSession(t, &fakeEngine{}, seed)

		out, err := s.BeginSteppingMove(domain.SideIA, mv)
		if err != nil {
			t.Fatalf("seed %d: BeginSteppingMove: %v", seed, err)
		}
		count := out.Stepping.Count()
		if count >= 4 {
			continue
		}

		// Row A is at least four rows from the step square on row Y.
		far := domain.Coord{Row: domain.RowA, Column: domain.ColumnZ}
		if _, err := s.ResolveHalfAcceptance(domain.SideIA, &far); apperr.CodeOf(err) != apperr.CodeRulesViolation {
			t.Fatalf("seed %d: out-of-reach dest with count %d: %v", seed, count, err)
		}
		rec, _ := s.LastRecord(0)
		if rec.FinalResult != nil {
			t.Fatalf("seed %d: rejected half acceptance filled the record", seed)
		}

		near := mv.Step
		if _, err := s.ResolveHalfAcceptance(domain.SideIA, &near); err != nil {
			t.Fatalf("seed %d: in-reach dest: %v", seed, err)
		}
		return
	}
	t.Skip("no stepping trial below 4 in the seed range")
}

func TestResolveHalfAcceptanceThwartedByWaterEntry(t *testing.T) {
	dest := domain.Coord{Row: domain.RowO, Column: domain.ColumnZ}
	success := fakeState{name: "entered", turn: domain.SideIA}
	failure := fakeState{name: "repelled", turn: domain.SideIA}

	sawFailure := false
	sawSuccess := false
	for seed := int64(0); seed < 100 && !(sawFailure && sawSuccess); seed++ {
		engine := &fakeEngine{half: func(s rules.State, d *domain.Coord) (rules.HalfOutcome, error) {
			return rules.HalfOutcome{
				Outcome: rules.Outcome{Success: success, Failure: failure},
				Settled: *d,
			}, nil
		}}
		s := newTestSession(t, engine, seed)

		if _, err := s.BeginSteppingMove(domain.SideIA, steppingMove()); err != nil {
			t.Fatalf("seed %d: BeginSteppingMove: %v", seed, err)
		}
		out, err := s.ResolveHalfAcceptance(domain.SideIA, &dest)
		if err != nil {
			t.Fatalf("seed %d: ResolveHalfAcceptance: %v", seed, err)
		}
		if out.WaterEntry == nil {
			t.Fatalf("seed %d: water entry trial not drawn", seed)
		}

		rec, _ := s.LastRecord(0)
		if rec.FinalResult == nil || rec.FinalResult.WaterEntry == nil {
			t.Fatalf("seed %d: final result missing the water entry trial", seed)
		}
		if out.WaterEntry.WaterEntrySucceeds() {
			sawSuccess = true
			if rec.FinalResult.Thwarted != nil {
				t.Errorf("seed %d: successful entry marked thwarted", seed)
			}
		} else {
			sawFailure = true
			if rec.FinalResult.Thwarted == nil {
				t.Errorf("seed %d: failed entry not marked thwarted", seed)
			}
		}
	}
	if !sawFailure || !sawSuccess {
		t.Error("seed range did not cover both water entry outcomes")
	}
}

func TestResolveHandContinuesSwitchesTurn(t *testing.T) {
	s := newTestSession(t, &fakeEngine{}, 1)

	if _, err := s.ApplySimpleMove(domain.SideIA, simpleMove()); err != nil {
		t.Fatalf("ApplySimpleMove: %v", err)
	}
	out, err := s.ResolveHand()
	if err != nil {
		t.Fatalf("ResolveHand: %v", err)
	}
	if out.Kind != HandNone {
		t.Fatalf("kind = %d, want HandNone", out.Kind)
	}
	if got := s.Phase(); got != PhaseAwaitingMove {
		t.Errorf("phase = %s, want AwaitingMove", got)
	}
	if got := s.WhoseTurn(); got != domain.SideA {
		t.Errorf("turn = %s, want ASide", got)
	}
}

func handEngine(alternatives rules.Resolution) *fakeEngine {
	return &fakeEngine{resolve: func(s rules.State) rules.Resolution {
		if st, ok := s.(fakeState); ok && st.name == "moved" {
			return alternatives
		}
		return rules.Resolution{
			Kind: rules.ResolutionContinues,
			Next: fakeState{name: "next", turn: s.WhoseTurn().Opponent(), season: s.Season()},
		}
	}}
}

func TestHandDecisionTyMok(t *testing.T) {
	after := fakeState{name: "tymok", turn: domain.SideA}
	engine := handEngine(rules.Resolution{
		Kind:    rules.ResolutionHandExists,
		IfTyMok: after,
	})
	s := newTestSession(t, engine, 1)

	if _, err := s.ApplySimpleMove(domain.SideIA, simpleMove()); err != nil {
		t.Fatalf("ApplySimpleMove: %v", err)
	}
	out, err := s.ResolveHand()
	if err != nil {
		t.Fatalf("ResolveHand: %v", err)
	}
	if out.Kind != HandPending {
		t.Fatalf("kind = %d, want HandPending", out.Kind)
	}
	rec, _ := s.LastRecord(0)
	if rec.Status != domain.StatusUndetermined {
		t.Errorf("status = %s, want NotYetDetermined", rec.Status)
	}

	// Classification is stable while the decision is owed.
	again, err := s.ResolveHand()
	if err != nil || again.Kind != HandPending {
		t.Fatalf("repeat ResolveHand: %+v, %v", again, err)
	}

	if err := s.AcceptAsIs(domain.SideA); apperr.CodeOf(err) != apperr.CodeWrongPhase {
		t.Errorf("opponent taking the decision: %v", err)
	}
	if err := s.AcceptAsIs(domain.SideIA); err != nil {
		t.Fatalf("AcceptAsIs: %v", err)
	}

	rec, _ = s.LastRecord(0)
	if rec.Status != domain.StatusTyMok {
		t.Errorf("status = %s, want TyMok", rec.Status)
	}
	if got := s.Phase(); got != PhaseAwaitingMove {
		t.Errorf("phase = %s, want AwaitingMove", got)
	}
	if got := s.WhoseTurn(); got != domain.SideA {
		t.Errorf("turn = %s, want ASide", got)
	}
}

func TestHandDecisionTaXotStartsNewSeason(t *testing.T) {
	layouts := []rules.State{
		fakeState{name: "spring2", turn: domain.SideA, season: 1},
		fakeState{name: "spring2b", turn: domain.SideIA, season: 1},
	}
	engine := handEngine(rules.Resolution{
		Kind:        rules.ResolutionHandExists,
		IfTyMok:     fakeState{name: "tymok", turn: domain.SideA},
		IfTaXotNext: layouts,
	})
	s := newTestSession(t, engine, 7)

	if _, err := s.ApplySimpleMove(domain.SideIA, simpleMove()); err != nil {
		t.Fatalf("ApplySimpleMove: %v", err)
	}
	if _, err := s.ResolveHand(); err != nil {
		t.Fatalf("ResolveHand: %v", err)
	}

	out, err := s.DemandNewSeason(domain.SideIA)
	if err != nil {
		t.Fatalf("DemandNewSeason: %v", err)
	}
	if out.GameEnded {
		t.Fatal("season restart reported a game end")
	}
	if out.FirstMover == nil {
		t.Fatal("no first mover for the new season")
	}
	if got := s.Season(); got != 1 {
		t.Errorf("season = %d, want 1", got)
	}
	if _, ok := s.FirstMover(true, 1); !ok {
		t.Error("season 1 first mover not stored")
	}
	rec, _ := s.LastRecord(0)
	if rec.Status != domain.StatusTaXot {
		t.Errorf("status = %s, want TaXot", rec.Status)
	}
	if got := s.Phase(); got != PhaseAwaitingMove {
		t.Errorf("phase = %s, want AwaitingMove", got)
	}
}

func TestHandDecisionTaXotVictory(t *testing.T) {
	victor := domain.SideIA
	engine := handEngine(rules.Resolution{
		Kind:          rules.ResolutionHandExists,
		IfTyMok:       fakeState{name: "tymok", turn: domain.SideA},
		IfTaXotVictor: &victor,
	})
	s := newTestSession(t, engine, 1)

	if _, err := s.ApplySimpleMove(domain.SideIA, simpleMove()); err != nil {
		t.Fatalf("ApplySimpleMove: %v", err)
	}
	if _, err := s.ResolveHand(); err != nil {
		t.Fatalf("ResolveHand: %v", err)
	}

	out, err := s.DemandNewSeason(domain.SideIA)
	if err != nil {
		t.Fatalf("DemandNewSeason: %v", err)
	}
	if !out.GameEnded || out.Victor == nil || *out.Victor != victor {
		t.Fatalf("outcome = %+v, want victory for IASide", out)
	}
	ended, got := s.Ended()
	if !ended || got == nil || *got != victor {
		t.Errorf("Ended() = %v, %v", ended, got)
	}
	if _, err := s.ApplySimpleMove(domain.SideIA, simpleMove()); apperr.CodeOf(err) != apperr.CodeWrongPhase {
		t.Errorf("move after game end: %v", err)
	}
}

func TestResolveHandGameEnds(t *testing.T) {
	victor := domain.SideIA
	engine := handEngine(rules.Resolution{
		Kind:   rules.ResolutionGameEnds,
		Victor: &victor,
	})
	s := newTestSession(t, engine, 1)

	if _, err := s.ApplySimpleMove(domain.SideIA, simpleMove()); err != nil {
		t.Fatalf("ApplySimpleMove: %v", err)
	}
	out, err := s.ResolveHand()
	if err != nil {
		t.Fatalf("ResolveHand: %v", err)
	}
	if out.Kind != HandGameEnd || out.Victor == nil || *out.Victor != victor {
		t.Fatalf("outcome = %+v, want game end for IASide", out)
	}

	// Repeat polls keep reporting the terminal result.
	again, err := s.ResolveHand()
	if err != nil || again.Kind != HandGameEnd {
		t.Fatalf("repeat ResolveHand: %+v, %v", again, err)
	}
}

func TestRecordsReturnsACopy(t *testing.T) {
	s := newTestSession(t, &fakeEngine{}, 1)
	if _, err := s.ApplySimpleMove(domain.SideIA, simpleMove()); err != nil {
		t.Fatalf("ApplySimpleMove: %v", err)
	}

	records := s.Records(0)
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	records[0].Status = domain.StatusTaXot

	rec, _ := s.LastRecord(0)
	if rec.Status != domain.StatusNone {
		t.Error("mutating the returned slice changed the ledger")
	}
}
