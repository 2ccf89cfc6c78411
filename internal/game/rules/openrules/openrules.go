// Package openrules is a permissive rules engine: it enforces board
// mechanics (occupancy, ownership, water entry, stepping, captures) but not
// the per-profession movement ranges, which clients validate themselves.
package openrules

import (
	"fmt"
	"math/rand"

	"github.com/cerke-online/backend/internal/game/domain"
	"github.com/cerke-online/backend/internal/game/rules"
)

// Config tunes the engine.
type Config struct {
	// Water marks the squares that demand a water-entry trial.
	Water map[domain.Coord]bool
	// HandInterval is the number of captures by one side that completes a
	// hand.
	HandInterval int
}

// DefaultConfig returns the standard board: the water cross centered on the
// O-Z square, a hand every third capture.
func DefaultConfig() Config {
	water := make(map[domain.Coord]bool)
	for _, col := range []domain.Column{domain.ColumnN, domain.ColumnT, domain.ColumnZ, domain.ColumnX, domain.ColumnC} {
		water[domain.Coord{Row: domain.RowO, Column: col}] = true
	}
	for _, row := range []domain.Row{domain.RowI, domain.RowU, domain.RowY, domain.RowAI} {
		water[domain.Coord{Row: row, Column: domain.ColumnZ}] = true
	}
	return Config{Water: water, HandInterval: 3}
}

// Engine implements rules.Engine.
type Engine struct {
	cfg Config
}

// New creates an engine with the given configuration.
func New(cfg Config) *Engine {
	if cfg.HandInterval <= 0 {
		cfg.HandInterval = 3
	}
	if cfg.Water == nil {
		cfg.Water = DefaultConfig().Water
	}
	return &Engine{cfg: cfg}
}

type piece struct {
	color domain.Color
	prof  domain.Profession
	side  domain.Side
	tam   bool
}

type stepContext struct {
	src     domain.Coord
	step    domain.Coord
	planned domain.Coord
	moving  piece
	count   int
}

// position is the engine's board state. Mutating operations clone first, so
// states handed out in outcomes stay stable.
type position struct {
	board    map[domain.Coord]piece
	hands    [2][]piece
	captures [2]int
	turn     domain.Side
	season   int
	pending  *stepContext

	handDone     bool
	ioCapturedBy *domain.Side
}

// WhoseTurn implements rules.State.
func (p *position) WhoseTurn() domain.Side { return p.turn }

// Season implements rules.State.
func (p *position) Season() int { return p.season }

func (p *position) clone() *position {
	out := &position{
		board:    make(map[domain.Coord]piece, len(p.board)),
		captures: p.captures,
		turn:     p.turn,
		season:   p.season,
		handDone: p.handDone,
	}
	for c, pc := range p.board {
		out.board[c] = pc
	}
	for side, hand := range p.hands {
		out.hands[side] = append([]piece(nil), hand...)
	}
	if p.pending != nil {
		pending := *p.pending
		out.pending = &pending
	}
	if p.ioCapturedBy != nil {
		side := *p.ioCapturedBy
		out.ioCapturedBy = &side
	}
	return out
}

// Initial implements rules.Engine. The side to move is drawn from rng; the
// caller aligns its first-mover decision with it.
func (e *Engine) Initial(rng *rand.Rand) rules.State {
	return e.newSeason(0, domain.Side(rng.Intn(2)))
}

func (e *Engine) newSeason(season int, turn domain.Side) *position {
	return &position{
		board:  initialBoard(),
		turn:   turn,
		season: season,
	}
}

// backRank is the A-side back row, king in the middle.
var backRank = []domain.Profession{
	domain.ProfessionKua2, domain.ProfessionMaun1, domain.ProfessionKaun1,
	domain.ProfessionUai1, domain.ProfessionIo, domain.ProfessionUai1,
	domain.ProfessionKaun1, domain.ProfessionMaun1, domain.ProfessionKua2,
}

// secondRank has gaps at the diagonal-mover files.
var secondRank = []*domain.Profession{
	profPtr(domain.ProfessionTuk2), profPtr(domain.ProfessionGua2), nil,
	profPtr(domain.ProfessionDau2), nil, profPtr(domain.ProfessionDau2),
	nil, profPtr(domain.ProfessionGua2), profPtr(domain.ProfessionTuk2),
}

func profPtr(p domain.Profession) *domain.Profession { return &p }

func initialBoard() map[domain.Coord]piece {
	board := make(map[domain.Coord]piece, 49)

	place := func(row domain.Row, col int, prof domain.Profession, side domain.Side) {
		color := domain.ColorHuok2
		if col%2 == 1 {
			color = domain.ColorKok1
		}
		board[domain.Coord{Row: row, Column: domain.Columns[col]}] = piece{
			color: color, prof: prof, side: side,
		}
	}

	for col, prof := range backRank {
		place(domain.RowA, col, prof, domain.SideA)
		place(domain.RowIA, col, prof, domain.SideIA)
	}
	for col, prof := range secondRank {
		if prof == nil {
			continue
		}
		place(domain.RowE, col, *prof, domain.SideA)
		place(domain.RowAU, col, *prof, domain.SideIA)
	}
	for col := range domain.Columns {
		prof := domain.ProfessionKauk2
		if domain.Columns[col] == domain.ColumnZ {
			prof = domain.ProfessionNuak1
		}
		place(domain.RowI, col, prof, domain.SideA)
		place(domain.RowAI, col, prof, domain.SideIA)
	}

	board[domain.Coord{Row: domain.RowO, Column: domain.ColumnZ}] = piece{tam: true}
	return board
}

func asPosition(s rules.State) (*position, error) {
	p, ok := s.(*position)
	if !ok {
		return nil, fmt.Errorf("state %T does not belong to this engine", s)
	}
	return p, nil
}

// ApplyNormalMove implements rules.Engine.
func (e *Engine) ApplyNormalMove(s rules.State, mv domain.Move) (rules.Outcome, error) {
	p, err := asPosition(s)
	if err != nil {
		return rules.Outcome{}, err
	}
	if p.pending != nil {
		return rules.Outcome{}, fmt.Errorf("a stepping move is in flight")
	}

	switch m := mv.(type) {
	case domain.FromHandMove:
		return e.applyFromHand(p, m)
	case domain.SrcDstMove:
		return e.applySlide(p, m.Src, m.Dest, nil)
	case domain.SrcStepDstMove:
		return e.applySlide(p, m.Src, m.Dest, &m.Step)
	case domain.TamMove:
		return e.applyTam(p, m)
	default:
		return rules.Outcome{}, fmt.Errorf("move kind %s is not a normal move", mv.Kind())
	}
}

func (e *Engine) applyFromHand(p *position, m domain.FromHandMove) (rules.Outcome, error) {
	if !m.Dest.Valid() {
		return rules.Outcome{}, fmt.Errorf("square %v does not exist", m.Dest)
	}
	if _, occupied := p.board[m.Dest]; occupied {
		return rules.Outcome{}, fmt.Errorf("square %s is occupied", m.Dest)
	}
	if e.cfg.Water[m.Dest] {
		return rules.Outcome{}, fmt.Errorf("pieces cannot be parachuted into water at %s", m.Dest)
	}

	next := p.clone()
	hand := next.hands[p.turn]
	found := -1
	for i, pc := range hand {
		if pc.color == m.Color && pc.prof == m.Profession {
			found = i
			break
		}
	}
	if found < 0 {
		return rules.Outcome{}, fmt.Errorf("no captured piece of color %d profession %d in hand", m.Color, m.Profession)
	}
	next.hands[p.turn] = append(hand[:found:found], hand[found+1:]...)
	next.board[m.Dest] = piece{color: m.Color, prof: m.Profession, side: p.turn}
	next.handDone = false
	return rules.Outcome{Certain: next}, nil
}

func (e *Engine) applySlide(p *position, src, dest domain.Coord, step *domain.Coord) (rules.Outcome, error) {
	if !src.Valid() || !dest.Valid() {
		return rules.Outcome{}, fmt.Errorf("move names a square off the board")
	}
	pc, ok := p.board[src]
	if !ok {
		return rules.Outcome{}, fmt.Errorf("square %s is empty", src)
	}
	if pc.tam {
		return rules.Outcome{}, fmt.Errorf("the Tam moves through its own descriptor")
	}
	if pc.side != p.turn {
		return rules.Outcome{}, fmt.Errorf("piece at %s belongs to the opponent", src)
	}
	if step != nil {
		if !step.Valid() {
			return rules.Outcome{}, fmt.Errorf("step square %v does not exist", *step)
		}
		if _, occupied := p.board[*step]; !occupied {
			return rules.Outcome{}, fmt.Errorf("step square %s is empty", *step)
		}
	}

	base := p.clone()
	delete(base.board, src)
	base.handDone = false
	return e.settle(base, pc, src, dest)
}

// settle lands a lifted piece on dest, branching on a water-entry trial when
// one is demanded. base must already have the piece lifted off src.
func (e *Engine) settle(base *position, pc piece, src, dest domain.Coord) (rules.Outcome, error) {
	if occupant, ok := base.board[dest]; ok {
		if occupant.tam {
			return rules.Outcome{}, fmt.Errorf("the Tam at %s cannot be captured", dest)
		}
		if occupant.side == pc.side {
			return rules.Outcome{}, fmt.Errorf("square %s holds your own piece", dest)
		}
	}

	landed := base.clone()
	if occupant, ok := landed.board[dest]; ok {
		captured := occupant
		captured.side = pc.side
		landed.hands[pc.side] = append(landed.hands[pc.side], captured)
		landed.captures[pc.side]++
		if landed.captures[pc.side]%e.cfg.HandInterval == 0 {
			landed.handDone = true
		}
		if occupant.prof == domain.ProfessionIo {
			side := pc.side
			landed.ioCapturedBy = &side
		}
	}
	landed.board[dest] = pc

	needsTrial := e.cfg.Water[dest] && !e.cfg.Water[src] && pc.prof != domain.ProfessionNuak1
	if !needsTrial {
		return rules.Outcome{Certain: landed}, nil
	}

	repelled := base.clone()
	repelled.board[src] = pc
	return rules.Outcome{Success: landed, Failure: repelled}, nil
}

func (e *Engine) applyTam(p *position, m domain.TamMove) (rules.Outcome, error) {
	for _, c := range []domain.Coord{m.Src, m.FirstDest, m.SecondDest} {
		if !c.Valid() {
			return rules.Outcome{}, fmt.Errorf("Tam move names a square off the board")
		}
	}
	pc, ok := p.board[m.Src]
	if !ok || !pc.tam {
		return rules.Outcome{}, fmt.Errorf("the Tam is not at %s", m.Src)
	}
	if m.Style == domain.TamNoStep && m.Step != nil {
		return rules.Outcome{}, fmt.Errorf("NoStep Tam move carries a step square")
	}
	if m.Style != domain.TamNoStep {
		if m.Step == nil {
			return rules.Outcome{}, fmt.Errorf("%s Tam move is missing its step square", m.Style)
		}
		if !m.Step.Valid() {
			return rules.Outcome{}, fmt.Errorf("step square %v does not exist", *m.Step)
		}
		if _, occupied := p.board[*m.Step]; !occupied {
			return rules.Outcome{}, fmt.Errorf("step square %s is empty", *m.Step)
		}
	}
	if _, occupied := p.board[m.SecondDest]; occupied && m.SecondDest != m.Src {
		return rules.Outcome{}, fmt.Errorf("the Tam cannot capture; %s is occupied", m.SecondDest)
	}
	if _, occupied := p.board[m.FirstDest]; occupied && m.FirstDest != m.Src {
		return rules.Outcome{}, fmt.Errorf("the Tam cannot rest on the occupied square %s", m.FirstDest)
	}

	next := p.clone()
	delete(next.board, m.Src)
	next.board[m.SecondDest] = pc
	next.handDone = false
	return rules.Outcome{Certain: next}, nil
}

// BeginStepMove implements rules.Engine. The piece is lifted off the board
// while the half-acceptance choice is owed.
func (e *Engine) BeginStepMove(s rules.State, mv domain.SteppingMove, stepping int) (rules.State, error) {
	p, err := asPosition(s)
	if err != nil {
		return nil, err
	}
	if p.pending != nil {
		return nil, fmt.Errorf("a stepping move is already in flight")
	}
	for _, c := range []domain.Coord{mv.Src, mv.Step, mv.PlannedDirection} {
		if !c.Valid() {
			return nil, fmt.Errorf("stepping move names a square off the board")
		}
	}
	pc, ok := p.board[mv.Src]
	if !ok {
		return nil, fmt.Errorf("square %s is empty", mv.Src)
	}
	if pc.tam {
		return nil, fmt.Errorf("the Tam moves through its own descriptor")
	}
	if pc.side != p.turn {
		return nil, fmt.Errorf("piece at %s belongs to the opponent", mv.Src)
	}
	if _, occupied := p.board[mv.Step]; !occupied {
		return nil, fmt.Errorf("step square %s is empty", mv.Step)
	}

	next := p.clone()
	delete(next.board, mv.Src)
	next.handDone = false
	next.pending = &stepContext{
		src:     mv.Src,
		step:    mv.Step,
		planned: mv.PlannedDirection,
		moving:  pc,
		count:   stepping,
	}
	return next, nil
}

// ApplyHalfAcceptance implements rules.Engine. dest nil returns the lifted
// piece to its origin.
func (e *Engine) ApplyHalfAcceptance(s rules.State, dest *domain.Coord) (rules.HalfOutcome, error) {
	p, err := asPosition(s)
	if err != nil {
		return rules.HalfOutcome{}, err
	}
	if p.pending == nil {
		return rules.HalfOutcome{}, fmt.Errorf("no stepping move is in flight")
	}
	pending := *p.pending

	if dest == nil || *dest == pending.src {
		next := p.clone()
		next.pending = nil
		next.board[pending.src] = pending.moving
		return rules.HalfOutcome{
			Outcome: rules.Outcome{Certain: next},
			Settled: pending.src,
		}, nil
	}

	if !dest.Valid() {
		return rules.HalfOutcome{}, fmt.Errorf("square %v does not exist", *dest)
	}
	if *dest == pending.step {
		return rules.HalfOutcome{}, fmt.Errorf("cannot settle on the stepped square %s", pending.step)
	}

	base := p.clone()
	base.pending = nil
	outcome, err := e.settle(base, pending.moving, pending.src, *dest)
	if err != nil {
		return rules.HalfOutcome{}, err
	}
	return rules.HalfOutcome{Outcome: outcome, Settled: *dest}, nil
}

// Resolve implements rules.Engine.
func (e *Engine) Resolve(s rules.State) rules.Resolution {
	p, err := asPosition(s)
	if err != nil {
		return rules.Resolution{Kind: rules.ResolutionGameEnds}
	}

	if p.ioCapturedBy != nil {
		victor := *p.ioCapturedBy
		return rules.Resolution{Kind: rules.ResolutionGameEnds, Victor: &victor}
	}

	if p.handDone {
		mover := p.turn
		cont := p.clone()
		cont.handDone = false
		cont.turn = cont.turn.Opponent()

		res := rules.Resolution{Kind: rules.ResolutionHandExists, IfTyMok: cont}
		if p.season+1 >= domain.SeasonCount {
			victor := mover
			res.IfTaXotVictor = &victor
		} else {
			res.IfTaXotNext = []rules.State{
				e.newSeason(p.season+1, domain.SideA),
				e.newSeason(p.season+1, domain.SideIA),
			}
		}
		return res
	}

	next := p.clone()
	next.turn = next.turn.Opponent()
	return rules.Resolution{Kind: rules.ResolutionContinues, Next: next}
}

// Candidates implements rules.Engine. Enumeration follows the engine's
// permissive reach: single-square slides, steps over any occupied neighbor,
// two-stage Tam walks, and drops onto any dry empty square.
func (e *Engine) Candidates(s rules.State) []domain.Move {
	p, err := asPosition(s)
	if err != nil || p.pending != nil {
		return nil
	}

	var out []domain.Move
	for ri, row := range domain.Rows {
		for ci, col := range domain.Columns {
			src := domain.Coord{Row: row, Column: col}
			pc, ok := p.board[src]
			if !ok {
				continue
			}
			if pc.tam {
				out = append(out, e.tamCandidates(p, src)...)
				continue
			}
			if pc.side != p.turn {
				continue
			}
			out = append(out, e.slideCandidates(p, src, ri, ci)...)
		}
	}
	out = append(out, e.dropCandidates(p)...)
	return out
}

func (e *Engine) slideCandidates(p *position, src domain.Coord, ri, ci int) []domain.Move {
	var out []domain.Move
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			dest, ok := coordAt(ri+dr, ci+dc)
			if !ok {
				continue
			}
			if _, occupied := p.board[dest]; !occupied {
				out = append(out, domain.SrcDstMove{Src: src, Dest: dest})
				continue
			}
			// Any occupied neighbor can be stepped over, but the planned
			// square must be landable.
			planned, ok := coordAt(ri+2*dr, ci+2*dc)
			if !ok {
				continue
			}
			if occ, occupied := p.board[planned]; occupied && (occ.side == p.turn || occ.tam) {
				continue
			}
			out = append(out, domain.SteppingMove{Src: src, Step: dest, PlannedDirection: planned})
		}
	}
	return out
}

func (e *Engine) tamCandidates(p *position, src domain.Coord) []domain.Move {
	ri, ci := coordIndices(src)
	var out []domain.Move
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			first, ok := coordAt(ri+dr, ci+dc)
			if !ok {
				continue
			}
			if _, occupied := p.board[first]; occupied {
				continue
			}
			fi, fj := coordIndices(first)
			for sr := -1; sr <= 1; sr++ {
				for sc := -1; sc <= 1; sc++ {
					if sr == 0 && sc == 0 {
						continue
					}
					second, ok := coordAt(fi+sr, fj+sc)
					if !ok {
						continue
					}
					if _, occupied := p.board[second]; occupied && second != src {
						continue
					}
					out = append(out, domain.TamMove{
						Style:      domain.TamNoStep,
						Src:        src,
						FirstDest:  first,
						SecondDest: second,
					})
				}
			}
		}
	}
	return out
}

func (e *Engine) dropCandidates(p *position) []domain.Move {
	seen := make(map[[2]int]bool)
	var kinds []piece
	for _, pc := range p.hands[p.turn] {
		key := [2]int{int(pc.color), int(pc.prof)}
		if seen[key] {
			continue
		}
		seen[key] = true
		kinds = append(kinds, pc)
	}
	if len(kinds) == 0 {
		return nil
	}

	var out []domain.Move
	for _, row := range domain.Rows {
		for _, col := range domain.Columns {
			dest := domain.Coord{Row: row, Column: col}
			if e.cfg.Water[dest] {
				continue
			}
			if _, occupied := p.board[dest]; occupied {
				continue
			}
			for _, pc := range kinds {
				out = append(out, domain.FromHandMove{Color: pc.color, Profession: pc.prof, Dest: dest})
			}
		}
	}
	return out
}

func coordAt(ri, ci int) (domain.Coord, bool) {
	if ri < 0 || ri >= len(domain.Rows) || ci < 0 || ci >= len(domain.Columns) {
		return domain.Coord{}, false
	}
	return domain.Coord{Row: domain.Rows[ri], Column: domain.Columns[ci]}, true
}

func coordIndices(c domain.Coord) (int, int) {
	ri, ci := -1, -1
	for i, r := range domain.Rows {
		if r == c.Row {
			ri = i
			break
		}
	}
	for i, col := range domain.Columns {
		if col == c.Column {
			ci = i
			break
		}
	}
	return ri, ci
}
