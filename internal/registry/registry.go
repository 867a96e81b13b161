// Package registry keeps the public room directory: a denormalized,
// best-effort index refreshed lazily from the authoritative room state.
package registry

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"impostor-be/internal/service/game"
)

const (
	// Entries this old with nobody inside are dropped eagerly
	pruneAge = 15 * time.Minute

	maxListed = 20
)

type Entry struct {
	Code        string `json:"code"`
	Name        string `json:"name,omitempty"`
	Topic       string `json:"topic"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
	Phase       string `json:"phase,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
}

// SnapshotFunc queries the authoritative state for a room; an error means
// the room no longer exists and the entry should go.
type SnapshotFunc func(code string) (*game.RoomState, error)

type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	snapshot SnapshotFunc
}

func New(snapshot SnapshotFunc) *Registry {
	return &Registry{
		entries:  make(map[string]*Entry),
		snapshot: snapshot,
	}
}

func (r *Registry) Register(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := e
	r.entries[e.Code] = &cp
}

func (r *Registry) Remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, code)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// List prunes stale entries, refreshes the survivors from live room state
// and returns the joinable lobby rooms, capped at 20.
func (r *Registry) List() []Entry {
	r.prune()

	r.mu.RLock()
	codes := make([]string, 0, len(r.entries))
	for code := range r.entries {
		codes = append(codes, code)
	}
	r.mu.RUnlock()

	listed := make([]Entry, 0, len(codes))

	for _, code := range codes {
		state, err := r.snapshot(code)
		if err != nil {
			// The room is gone; the index entry follows it
			r.Remove(code)
			continue
		}

		r.mu.Lock()
		e, ok := r.entries[code]
		if !ok {
			r.mu.Unlock()
			continue
		}

		e.PlayerCount = len(state.Players)
		e.Phase = state.Phase
		refreshed := *e
		r.mu.Unlock()

		if refreshed.PlayerCount >= refreshed.MaxPlayers || refreshed.Phase != game.PHASE_LOBBY {
			continue
		}

		listed = append(listed, refreshed)
		if len(listed) >= maxListed {
			break
		}
	}

	return listed
}

// Entries returns the raw index without refresh or filtering, for the
// admin stats view.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		all = append(all, *e)
	}

	return all
}

// prune drops aged entries whose room is actually empty. The stored
// player count can be stale (it is only written on refresh), so every
// aged entry is checked against live room state before deletion; a room
// holding players is retained no matter how old its entry is.
func (r *Registry) prune() {
	now := time.Now().UnixMilli()

	r.mu.RLock()
	aged := make([]string, 0)
	for code, e := range r.entries {
		if now-e.CreatedAt > pruneAge.Milliseconds() {
			aged = append(aged, code)
		}
	}
	r.mu.RUnlock()

	for _, code := range aged {
		state, err := r.snapshot(code)
		if err == nil && len(state.Players) > 0 {
			r.mu.Lock()
			if e, ok := r.entries[code]; ok {
				e.PlayerCount = len(state.Players)
			}
			r.mu.Unlock()
			continue
		}

		zap.L().Debug("pruned stale public room", zap.String("room_code", code))
		r.Remove(code)
	}
}
