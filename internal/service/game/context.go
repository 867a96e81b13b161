package game

import (
	"encoding/json"

	"go.uber.org/zap"

	"impostor-be/internal/store"
	"impostor-be/internal/words"
)

// GameContext bundles the authoritative room state with everything the
// phase handlers need: the durable slot, the word source and the bound
// client channels. All access happens on the room goroutine.
type GameContext struct {
	State *RoomState

	store store.RoomStore
	words words.Source

	// One event channel per bound player; rebinding replaces the entry.
	sessions map[string]chan Event
}

func NewGameContext(state *RoomState, st store.RoomStore, src words.Source) *GameContext {
	return &GameContext{
		State:    state,
		store:    st,
		words:    src,
		sessions: make(map[string]chan Event),
	}
}

// Persist writes the current state to the durable slot. Mutation and
// persistence form one unit: callers must not broadcast when this fails.
func (gc *GameContext) Persist() error {
	data, err := json.Marshal(gc.State)
	if err != nil {
		zap.L().Error(
			"failed to encode room state",
			zap.String("room_code", gc.State.Code),
			zap.Error(err),
		)
		return err
	}

	if err := gc.store.Save(gc.State.Code, data); err != nil {
		zap.L().Error(
			"failed to persist room state",
			zap.String("room_code", gc.State.Code),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// PersistAndBroadcast persists the state and, only on success, fans the
// event out to every bound channel with the same state snapshot attached.
func (gc *GameContext) PersistAndBroadcast(ev Event) {
	if err := gc.Persist(); err != nil {
		// State change stays in memory; the next successful command
		// re-persists it. No broadcast for this one.
		return
	}

	ev.State = gc.State.Clone()
	gc.Broadcast(ev)
}

// Broadcast never blocks on a single slow or dead client; their channel
// is buffered and a full buffer just drops the frame for them.
func (gc *GameContext) Broadcast(ev Event) {
	for playerID, ch := range gc.sessions {
		select {
		case ch <- ev:
		default:
			zap.L().Warn(
				"dropping broadcast, client channel full",
				zap.String("room_code", gc.State.Code),
				zap.String("player_id", playerID),
			)
		}
	}
}

func (gc *GameContext) Unicast(playerID string, ev Event) {
	ch, ok := gc.sessions[playerID]
	if !ok {
		return
	}

	select {
	case ch <- ev:
	default:
		zap.L().Warn(
			"dropping unicast, client channel full",
			zap.String("room_code", gc.State.Code),
			zap.String("player_id", playerID),
		)
	}
}

// BindSession attaches a client channel to a player: marks them connected,
// announces the liveness change and pushes the full state to the new
// channel. A bind for an unknown player is inert. A second bind for the
// same player supersedes the first; the replaced channel is closed so its
// write pump exits.
func (gc *GameContext) BindSession(req *BindRequest) {
	p := gc.State.FindPlayer(req.PlayerID)
	if p == nil {
		zap.L().Warn(
			"connect for unknown player ignored",
			zap.String("room_code", gc.State.Code),
			zap.String("player_id", req.PlayerID),
		)
		return
	}

	if old, ok := gc.sessions[req.PlayerID]; ok && old != req.EvCh {
		close(old)
	}
	gc.sessions[req.PlayerID] = req.EvCh

	p.Connected = true

	gc.PersistAndBroadcast(Event{Type: EVT_PLAYER_CONNECTED, PlayerID: p.ID})
	gc.Unicast(p.ID, Event{Type: EVT_STATE, State: gc.State.Clone()})
}

// UnbindSession runs the disconnect transition: mark the player
// disconnected, then either wipe the room (last one out) or fail the host
// role over to the earliest-joined connected player.
func (gc *GameContext) UnbindSession(req *UnbindRequest) {
	cur, ok := gc.sessions[req.PlayerID]
	if !ok || cur != req.EvCh {
		// A superseded channel closing must not disconnect its replacement
		return
	}

	delete(gc.sessions, req.PlayerID)
	close(cur)

	p := gc.State.FindPlayer(req.PlayerID)
	if p == nil {
		return
	}

	p.Connected = false

	if gc.State.ConnectedCount() == 0 {
		gc.wipeRoom()
		return
	}

	hostChanged := false
	if gc.State.HostID == p.ID {
		next := gc.State.EarliestConnected()
		gc.State.HostID = next.ID
		hostChanged = true
	}

	gc.PersistAndBroadcast(Event{Type: EVT_PLAYER_DISCONNECTED, PlayerID: p.ID})

	if hostChanged {
		zap.L().Info(
			"host reassigned after disconnect",
			zap.String("room_code", gc.State.Code),
			zap.String("new_host_id", gc.State.HostID),
		)
		gc.PersistAndBroadcast(Event{Type: EVT_HOST_CHANGED, NewHostID: gc.State.HostID})
	}
}

// wipeRoom empties the room once the last connected player leaves, so the
// registry sees a zero-player lobby and the cleanup sweep can reclaim it.
func (gc *GameContext) wipeRoom() {
	zap.L().Info(
		"last player disconnected, wiping room",
		zap.String("room_code", gc.State.Code),
	)

	gc.State.Players = gc.State.Players[:0]
	gc.State.HostID = ""
	gc.State.Phase = PHASE_LOBBY
	gc.State.SecretWord = ""
	gc.State.Winner = ""
	gc.State.CurrentRound = 0

	if err := gc.Persist(); err != nil {
		zap.L().Warn(
			"failed to persist wiped room",
			zap.String("room_code", gc.State.Code),
		)
	}
}

// DropSession removes a kicked player's binding, closing their channel so
// the transport tears the socket down.
func (gc *GameContext) DropSession(playerID string) {
	if ch, ok := gc.sessions[playerID]; ok {
		close(ch)
		delete(gc.sessions, playerID)
	}
}
