// Package registry tracks live rooms and the credentials that grant access
// to them.
package registry

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cerke-online/backend/internal/game/session"
	"github.com/cerke-online/backend/internal/platform/apperr"
)

// Perspective is one player's view of their room.
type Perspective struct {
	Room uuid.UUID
	// IADown reports whether the IA row is on this player's side of the
	// board.
	IADown bool
}

// Registry is the authoritative index of rooms, sessions and credentials.
// All methods are safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	perspectives map[uuid.UUID]Perspective
	sessions     map[uuid.UUID]*session.Session
	botRooms     map[uuid.UUID]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		perspectives: make(map[uuid.UUID]Perspective),
		sessions:     make(map[uuid.UUID]*session.Session),
		botRooms:     make(map[uuid.UUID]struct{}),
	}
}

// AddRoom registers a room's session. vsBot marks rooms whose second seat is
// played by the server.
func (r *Registry) AddRoom(room uuid.UUID, s *session.Session, vsBot bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[room] = s
	if vsBot {
		r.botRooms[room] = struct{}{}
	}
}

// Bind associates an access token with a player's perspective on a room.
func (r *Registry) Bind(token uuid.UUID, p Perspective) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perspectives[token] = p
}

// ResolveToken authenticates a raw bearer token and returns the caller's
// perspective and session. A malformed token is a BAD_CREDENTIAL; a
// well-formed token with no binding is an UNKNOWN_CREDENTIAL.
func (r *Registry) ResolveToken(raw string) (Perspective, *session.Session, error) {
	token, err := uuid.Parse(raw)
	if err != nil {
		return Perspective{}, nil, apperr.Wrap(apperr.CodeBadCredential, "access token is not a valid UUID", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.perspectives[token]
	if !ok {
		return Perspective{}, nil, apperr.New(apperr.CodeUnknownCredential, "access token does not belong to any room")
	}
	s, ok := r.sessions[p.Room]
	if !ok {
		return Perspective{}, nil, apperr.New(apperr.CodeCorruptSession,
			fmt.Sprintf("token is bound to room %s which has no session", p.Room))
	}
	return p, s, nil
}

// Session returns the session of a room, if any.
func (r *Registry) Session(room uuid.UUID) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[room]
	return s, ok
}

// IsBotRoom reports whether the room's opponent seat is played by the
// server.
func (r *Registry) IsBotRoom(room uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.botRooms[room]
	return ok
}

// RemoveRoom drops a room, its session and every token bound to it.
func (r *Registry) RemoveRoom(room uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, room)
	delete(r.botRooms, room)
	for token, p := range r.perspectives {
		if p.Room == room {
			delete(r.perspectives, token)
		}
	}
}
