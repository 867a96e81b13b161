package service

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"impostor-be/internal/service/game"
	"impostor-be/internal/store"
	"impostor-be/internal/words"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomBusy     = errors.New("room busy, try again later")
)

const (
	// How long an empty room lingers before the sweep reclaims it
	emptyRoomMaxAge = 15 * time.Minute

	requestTimeout = 5 * time.Second
	queryTimeout   = 2 * time.Second
)

// RoomService owns the table of live rooms and the one goroutine each
// room runs on. Everything that touches a room's state goes through that
// room's request channel.
type RoomService struct {
	state *roomServiceState

	store store.RoomStore
	words words.Source

	// Called with the room code after a room is torn down, so the public
	// directory can drop its entry
	onClose func(code string)

	roomsCreated atomic.Int64
}

type roomServiceState struct {
	mu sync.RWMutex

	rooms map[string]*roomHandle

	cleanUpDone chan struct{}
}

type roomHandle struct {
	machine   *game.GameMachine
	reqCh     chan game.RequestWrapper
	createdAt time.Time
}

func NewRoomService(st store.RoomStore, src words.Source) *RoomService {
	rs := &RoomService{
		state: &roomServiceState{
			rooms:       make(map[string]*roomHandle),
			cleanUpDone: make(chan struct{}),
		},
		store: st,
		words: src,
	}

	go rs.cleanupLoop()

	return rs
}

// SetOnClose registers the teardown hook. Must be called before traffic
// arrives.
func (rs *RoomService) SetOnClose(fn func(code string)) {
	rs.onClose = fn
}

func (rs *RoomService) Close() {
	close(rs.state.cleanUpDone)
}

func (rs *RoomService) RoomsCreated() int64 {
	return rs.roomsCreated.Load()
}

func (rs *RoomService) CreateRoom(cfg game.RoomConfig) (string, error) {
	if err := validateConfig(&cfg); err != nil {
		return "", err
	}

	rs.state.mu.Lock()
	defer rs.state.mu.Unlock()

	code, err := rs.pickFreeCode()
	if err != nil {
		return "", err
	}

	state := game.NewRoomState(code, cfg, time.Now().UnixMilli())

	// Persist the empty lobby before anyone can address the room
	data, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	if err := rs.store.Save(code, data); err != nil {
		return "", err
	}

	machine := game.NewGameMachine(state, rs.store, rs.words)

	rs.state.rooms[code] = &roomHandle{
		machine:   machine,
		reqCh:     machine.ReqCh(),
		createdAt: machine.CreatedAt(),
	}

	go machine.Start()

	rs.roomsCreated.Add(1)

	zap.L().Info(
		"room created",
		zap.String("room_code", code),
		zap.String("mode", cfg.Mode),
		zap.Bool("public", cfg.IsPublic),
	)

	return code, nil
}

func validateConfig(cfg *game.RoomConfig) error {
	switch cfg.Mode {
	case game.MODE_LIST, game.MODE_AI, game.MODE_RANDOM:
	case "":
		cfg.Mode = game.MODE_LIST
	default:
		return errors.New("unknown word mode")
	}

	if cfg.NumPlayers <= 0 {
		cfg.NumPlayers = 4
	}
	if cfg.NumPlayers < 3 {
		return errors.New("room capacity must be at least 3")
	}
	if cfg.NumPlayers > len(game.IconPalette) {
		cfg.NumPlayers = len(game.IconPalette)
	}

	if cfg.NumImpostors <= 0 {
		cfg.NumImpostors = 1
	}
	if cfg.NumImpostors >= cfg.NumPlayers {
		return errors.New("impostor count must be below room capacity")
	}

	return nil
}

func (rs *RoomService) pickFreeCode() (string, error) {
	for attempt := 0; attempt < 32; attempt++ {
		code := GenerateRoomCode()

		if _, live := rs.state.rooms[code]; live {
			continue
		}

		// A persisted slot means a dormant room still owns this code
		if _, err := rs.store.Load(code); err == nil {
			continue
		}

		return code, nil
	}

	return "", errors.New("failed to allocate a room code")
}

// JoinRoom funnels an HTTP join through the room goroutine so it is
// serialized with every other command for that room.
func (rs *RoomService) JoinRoom(code, name, icon string) (*game.Player, *game.RoomState, error) {
	if name == "" {
		return nil, nil, errors.New("player name must not be empty")
	}

	h, err := rs.roomHandle(NormalizeCode(code))
	if err != nil {
		return nil, nil, err
	}

	respCh := make(chan game.JoinResult, 1)
	req := game.RequestWrapper{
		Join: &game.JoinRequest{Name: name, Icon: icon, RespCh: respCh},
	}

	if err := sendWithTimeout(h.reqCh, req, requestTimeout); err != nil {
		return nil, nil, err
	}

	select {
	case res := <-respCh:
		if res.Err != nil {
			return nil, nil, res.Err
		}
		return res.Player, res.State, nil

	case <-time.After(requestTimeout):
		zap.L().Warn("join response timed out", zap.String("room_code", code))
		return nil, nil, ErrRoomBusy
	}
}

// Snapshot returns a consistent copy of the room state, read through the
// room goroutine.
func (rs *RoomService) Snapshot(code string) (*game.RoomState, error) {
	h, err := rs.roomHandle(NormalizeCode(code))
	if err != nil {
		return nil, err
	}

	respCh := make(chan *game.RoomState, 1)
	req := game.RequestWrapper{
		Snapshot: &game.SnapshotRequest{RespCh: respCh},
	}

	if err := sendWithTimeout(h.reqCh, req, queryTimeout); err != nil {
		return nil, err
	}

	select {
	case snap := <-respCh:
		return snap, nil
	case <-time.After(queryTimeout):
		return nil, ErrRoomBusy
	}
}

// RoomChannel hands the transport layer a room's request channel.
func (rs *RoomService) RoomChannel(code string) (chan game.RequestWrapper, error) {
	h, err := rs.roomHandle(NormalizeCode(code))
	if err != nil {
		return nil, err
	}

	return h.reqCh, nil
}

// roomHandle finds a live room, reviving a dormant one from the durable
// store when the process has restarted since it was last touched.
func (rs *RoomService) roomHandle(code string) (*roomHandle, error) {
	rs.state.mu.RLock()
	h, ok := rs.state.rooms[code]
	rs.state.mu.RUnlock()

	if ok {
		return h, nil
	}

	rs.state.mu.Lock()
	defer rs.state.mu.Unlock()

	// Somebody else may have revived it while we waited for the lock
	if h, ok := rs.state.rooms[code]; ok {
		return h, nil
	}

	data, err := rs.store.Load(code)
	if err != nil {
		return nil, ErrRoomNotFound
	}

	var state game.RoomState
	if err := json.Unmarshal(data, &state); err != nil {
		zap.L().Error(
			"failed to decode persisted room, dropping it",
			zap.String("room_code", code),
			zap.Error(err),
		)
		_ = rs.store.Delete(code)

		return nil, ErrRoomNotFound
	}

	// No sockets survived the restart
	for _, p := range state.Players {
		p.Connected = false
	}

	machine := game.NewGameMachine(&state, rs.store, rs.words)

	h = &roomHandle{
		machine:   machine,
		reqCh:     machine.ReqCh(),
		createdAt: machine.CreatedAt(),
	}
	rs.state.rooms[code] = h

	go machine.Start()

	zap.L().Info("room revived from store", zap.String("room_code", code))

	return h, nil
}

func sendWithTimeout(ch chan<- game.RequestWrapper, req game.RequestWrapper, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- req:
		return nil
	case <-timer.C:
		return ErrRoomBusy
	}
}

// cleanupLoop periodically reclaims rooms that have sat empty long
// enough: the goroutine is stopped, the durable slot deleted and the
// directory notified.
func (rs *RoomService) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rs.state.cleanUpDone:
			return

		case <-ticker.C:
			rs.sweepEmptyRooms()
		}
	}
}

func (rs *RoomService) sweepEmptyRooms() {
	rs.state.mu.RLock()
	codes := make([]string, 0, len(rs.state.rooms))
	for code := range rs.state.rooms {
		codes = append(codes, code)
	}
	rs.state.mu.RUnlock()

	for _, code := range codes {
		rs.state.mu.RLock()
		h, ok := rs.state.rooms[code]
		rs.state.mu.RUnlock()

		if !ok || time.Since(h.createdAt) <= emptyRoomMaxAge {
			continue
		}

		snap, err := rs.Snapshot(code)
		if err != nil || len(snap.Players) > 0 {
			continue
		}

		rs.closeRoom(code, h)
	}
}

func (rs *RoomService) closeRoom(code string, h *roomHandle) {
	if err := sendWithTimeout(h.reqCh, game.RequestWrapper{Done: true}, queryTimeout); err != nil {
		// Leave it for the next sweep
		zap.L().Warn("room did not accept shutdown", zap.String("room_code", code))
		return
	}

	rs.state.mu.Lock()
	delete(rs.state.rooms, code)
	rs.state.mu.Unlock()

	if err := rs.store.Delete(code); err != nil {
		zap.L().Warn(
			"failed to delete persisted room",
			zap.String("room_code", code),
			zap.Error(err),
		)
	}

	if rs.onClose != nil {
		rs.onClose(code)
	}

	zap.L().Info("empty room reclaimed", zap.String("room_code", code))
}
