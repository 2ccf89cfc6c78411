// Package match pairs players into rooms. A matchmaker keeps a waiting pool
// of unpaired credentials; pairing picks a waiting player uniformly at
// random. Single-player entries skip the pool and seat the server's bot
// immediately.
package match

import (
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/cerke-online/backend/internal/core/firstmover"
	"github.com/cerke-online/backend/internal/game/registry"
	"github.com/cerke-online/backend/internal/game/rules"
	"github.com/cerke-online/backend/internal/game/session"
	"github.com/cerke-online/backend/internal/platform/apperr"
)

// Assignment is a formed room from one player's point of view.
type Assignment struct {
	Perspective registry.Perspective
	// FirstMove is the opening season's first-mover decision from this
	// player's perspective.
	FirstMove firstmover.Decision
}

// EntryResult is the outcome of joining the matchmaker.
type EntryResult struct {
	// Token is the caller's access token, whether waiting or assigned.
	Token uuid.UUID
	// Assigned is set when a room was formed immediately.
	Assigned *Assignment
}

// PollResult is the outcome of asking about a waiting credential.
type PollResult struct {
	// Waiting is set while the credential is still in the pool.
	Waiting bool
	// Assigned is set once the credential has been paired into a room.
	Assigned *Assignment
}

// Matchmaker owns one waiting pool. Multiple matchmakers may share a
// registry; each pool pairs only within itself.
type Matchmaker struct {
	mu   sync.Mutex
	rng  *rand.Rand
	pool map[uuid.UUID]struct{}

	registry *registry.Registry
	engine   rules.Engine
	// seed produces the seed for each new session's random source.
	seed func() int64
}

// New creates a matchmaker. rng drives pairing and seat assignment; seed
// produces per-session random sources.
func New(reg *registry.Registry, engine rules.Engine, rng *rand.Rand, seed func() int64) *Matchmaker {
	return &Matchmaker{
		rng:      rng,
		pool:     make(map[uuid.UUID]struct{}),
		registry: reg,
		engine:   engine,
		seed:     seed,
	}
}

// Entry issues a fresh access token and either pairs the caller with a
// waiting player or parks the token in the pool.
func (m *Matchmaker) Entry() EntryResult {
	token := uuid.New()

	m.mu.Lock()
	defer m.mu.Unlock()

	opponent, ok := m.popWaitingLocked()
	if !ok {
		m.pool[token] = struct{}{}
		return EntryResult{Token: token}
	}

	iaDown := m.rng.Intn(2) == 0
	assignment := m.formRoomLocked(token, opponent, iaDown, false)
	return EntryResult{Token: token, Assigned: &assignment}
}

// EntryVsCpu creates a room against the server's bot immediately.
func (m *Matchmaker) EntryVsCpu() EntryResult {
	token := uuid.New()

	m.mu.Lock()
	defer m.mu.Unlock()

	iaDown := m.rng.Intn(2) == 0
	assignment := m.formRoomLocked(token, uuid.Nil, iaDown, true)
	return EntryResult{Token: token, Assigned: &assignment}
}

// popWaitingLocked removes and returns a uniformly random waiting token.
func (m *Matchmaker) popWaitingLocked() (uuid.UUID, bool) {
	if len(m.pool) == 0 {
		return uuid.Nil, false
	}
	waiting := make([]uuid.UUID, 0, len(m.pool))
	for token := range m.pool {
		waiting = append(waiting, token)
	}
	picked := waiting[m.rng.Intn(len(waiting))]
	delete(m.pool, picked)
	return picked, true
}

// formRoomLocked creates a session, registers the room and binds the
// caller's token. opponent is uuid.Nil for bot rooms.
func (m *Matchmaker) formRoomLocked(token, opponent uuid.UUID, iaDown, vsBot bool) Assignment {
	room := uuid.New()
	sess := session.New(m.engine, rand.New(rand.NewSource(m.seed())))
	m.registry.AddRoom(room, sess, vsBot)

	perspective := registry.Perspective{Room: room, IADown: iaDown}
	m.registry.Bind(token, perspective)
	if !vsBot {
		m.registry.Bind(opponent, registry.Perspective{Room: room, IADown: !iaDown})
	}

	firstMove, _ := sess.FirstMover(iaDown, 0)
	return Assignment{Perspective: perspective, FirstMove: firstMove}
}

// Poll reports whether a credential is still waiting or has been paired.
func (m *Matchmaker) Poll(raw string) (PollResult, error) {
	token, err := uuid.Parse(raw)
	if err != nil {
		return PollResult{}, apperr.Wrap(apperr.CodeBadCredential, "access token is not a valid UUID", err)
	}

	m.mu.Lock()
	_, waiting := m.pool[token]
	m.mu.Unlock()
	if waiting {
		return PollResult{Waiting: true}, nil
	}

	perspective, sess, err := m.registry.ResolveToken(raw)
	if err != nil {
		return PollResult{}, err
	}
	firstMove, _ := sess.FirstMover(perspective.IADown, 0)
	return PollResult{Assigned: &Assignment{Perspective: perspective, FirstMove: firstMove}}, nil
}

// Cancel withdraws a waiting credential. Cancelling an unknown token
// succeeds, so retries are safe; cancelling a token that already has a room
// fails.
func (m *Matchmaker) Cancel(raw string) (bool, error) {
	token, err := uuid.Parse(raw)
	if err != nil {
		return false, apperr.Wrap(apperr.CodeBadCredential, "access token is not a valid UUID", err)
	}

	m.mu.Lock()
	if _, waiting := m.pool[token]; waiting {
		delete(m.pool, token)
		m.mu.Unlock()
		return true, nil
	}
	m.mu.Unlock()

	if _, _, err := m.registry.ResolveToken(raw); err == nil {
		return false, nil
	}
	return true, nil
}

// IsWaiting reports whether the raw token sits unpaired in this pool.
// Unparseable tokens are simply not waiting.
func (m *Matchmaker) IsWaiting(raw string) bool {
	token, err := uuid.Parse(raw)
	if err != nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, waiting := m.pool[token]
	return waiting
}

// Waiting returns the number of unpaired credentials in the pool.
func (m *Matchmaker) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pool)
}
