package game

import (
	"context"
	"testing"
	"time"

	"impostor-be/internal/store"
	"impostor-be/internal/words"
)

// stubWords keeps tests off the network.
type stubWords struct{}

func (stubWords) Generate(_ context.Context, _, _ string, _ bool) words.Result {
	return words.Result{Word: "PRUEBA", Hint: "PISTA"}
}

// harness drives the phase handlers the way GameMachine does, without the
// goroutine, so tests stay synchronous.
type harness struct {
	ctx     *GameContext
	handler PhaseHandler
}

func newHarness(t *testing.T, cfg RoomConfig) *harness {
	t.Helper()

	if cfg.NumPlayers == 0 {
		cfg.NumPlayers = 8
	}
	if cfg.NumImpostors == 0 {
		cfg.NumImpostors = 1
	}
	if cfg.Mode == "" {
		cfg.Mode = MODE_LIST
	}

	state := NewRoomState("TEST", cfg, time.Now().UnixMilli())

	h := &harness{
		ctx:     NewGameContext(state, store.NewMemoryStore(), stubWords{}),
		handler: NewLobbyHandler(),
	}
	h.handler.SetOnSwitch(func(next string) {
		h.ctx.State.Phase = next
	})

	return h
}

func (h *harness) handle(req RequestWrapper) error {
	err := h.handler.OnHandle(h.ctx, req)

	if h.ctx.State.Phase != h.handler.Phase() {
		h.handler.OnExit(h.ctx)
		h.handler = handlerFor(h.ctx.State.Phase)
		h.handler.SetOnSwitch(func(next string) {
			h.ctx.State.Phase = next
		})
		h.handler.OnEnter(h.ctx)
	}

	return err
}

func (h *harness) cmd(c Command) error {
	return h.handle(RequestWrapper{Cmd: &c})
}

func (h *harness) join(t *testing.T, name, icon string) *Player {
	t.Helper()

	respCh := make(chan JoinResult, 1)
	if err := h.handle(RequestWrapper{Join: &JoinRequest{Name: name, Icon: icon, RespCh: respCh}}); err != nil {
		t.Fatalf("join %s failed: %v", name, err)
	}

	res := <-respCh
	if res.Err != nil {
		t.Fatalf("join %s rejected: %v", name, res.Err)
	}

	return res.Player
}

// fillLobby joins n players and readies them all up.
func (h *harness) fillLobby(t *testing.T, n int) []*Player {
	t.Helper()

	players := make([]*Player, n)
	for i := 0; i < n; i++ {
		players[i] = h.join(t, string(rune('A'+i)), "")
	}

	for _, p := range players {
		if err := h.cmd(Command{Type: CMD_TOGGLE_READY, PlayerID: p.ID}); err != nil {
			t.Fatalf("toggle-ready failed: %v", err)
		}
	}

	return players
}

func TestJoinAssignsHostAndUniqueIcons(t *testing.T) {
	h := newHarness(t, RoomConfig{})

	first := h.join(t, "Ana", "🐱")
	second := h.join(t, "Bea", "🐱")
	third := h.join(t, "Carla", "🐱")

	if h.ctx.State.HostID != first.ID {
		t.Fatalf("first joiner should be host, got %q", h.ctx.State.HostID)
	}

	seen := make(map[string]string)
	for _, p := range h.ctx.State.Players {
		if owner, dup := seen[p.Icon]; dup {
			t.Fatalf("icon %q held by both %s and %s", p.Icon, owner, p.ID)
		}
		seen[p.Icon] = p.ID
	}

	if second.Icon == first.Icon || third.Icon == first.Icon {
		t.Fatalf("icon collision not resolved: %q %q %q", first.Icon, second.Icon, third.Icon)
	}
}

func TestJoinRejectedWhenRoomFull(t *testing.T) {
	h := newHarness(t, RoomConfig{NumPlayers: 3})

	h.join(t, "Ana", "")
	h.join(t, "Bea", "")
	h.join(t, "Carla", "")

	respCh := make(chan JoinResult, 1)
	_ = h.handle(RequestWrapper{Join: &JoinRequest{Name: "Dana", RespCh: respCh}})

	res := <-respCh
	if res.Err == nil {
		t.Fatal("join into a full room should fail")
	}
	if len(h.ctx.State.Players) != 3 {
		t.Fatalf("player list grew past capacity: %d", len(h.ctx.State.Players))
	}
}

func TestChangeIconRejectsTakenIcon(t *testing.T) {
	h := newHarness(t, RoomConfig{})

	a := h.join(t, "Ana", "🦊")
	b := h.join(t, "Bea", "🐱")

	if err := h.cmd(Command{Type: CMD_CHANGE_ICON, PlayerID: b.ID, Icon: "🦊"}); err == nil {
		t.Fatal("changing to a taken icon should be rejected")
	}
	if got := h.ctx.State.FindPlayer(b.ID).Icon; got != "🐱" {
		t.Fatalf("icon changed despite rejection: %q", got)
	}

	if err := h.cmd(Command{Type: CMD_CHANGE_ICON, PlayerID: a.ID, Icon: "🐼"}); err != nil {
		t.Fatalf("changing to a free icon failed: %v", err)
	}
}

func TestKickPlayerHostOnly(t *testing.T) {
	h := newHarness(t, RoomConfig{})

	host := h.join(t, "Ana", "")
	other := h.join(t, "Bea", "")

	if err := h.cmd(Command{Type: CMD_KICK_PLAYER, PlayerID: other.ID, KickID: host.ID}); err == nil {
		t.Fatal("non-host kick should be rejected")
	}
	if err := h.cmd(Command{Type: CMD_KICK_PLAYER, PlayerID: host.ID, KickID: host.ID}); err == nil {
		t.Fatal("host kicking themselves should be rejected")
	}

	if err := h.cmd(Command{Type: CMD_KICK_PLAYER, PlayerID: host.ID, KickID: other.ID}); err != nil {
		t.Fatalf("host kick failed: %v", err)
	}
	if h.ctx.State.FindPlayer(other.ID) != nil {
		t.Fatal("kicked player still listed")
	}
}

func TestStartGameGuards(t *testing.T) {
	h := newHarness(t, RoomConfig{})

	host := h.join(t, "Ana", "")
	h.join(t, "Bea", "")

	// Only 2 players
	if err := h.cmd(Command{Type: CMD_START_GAME, PlayerID: host.ID}); err == nil {
		t.Fatal("start with 2 players should be rejected")
	}

	third := h.join(t, "Carla", "")

	// Nobody ready
	if err := h.cmd(Command{Type: CMD_START_GAME, PlayerID: host.ID}); err == nil {
		t.Fatal("start with unready players should be rejected")
	}

	for _, p := range h.ctx.State.Players {
		_ = h.cmd(Command{Type: CMD_TOGGLE_READY, PlayerID: p.ID})
	}

	// Not the host
	if err := h.cmd(Command{Type: CMD_START_GAME, PlayerID: third.ID}); err == nil {
		t.Fatal("non-host start should be rejected")
	}

	if err := h.cmd(Command{Type: CMD_START_GAME, PlayerID: host.ID}); err != nil {
		t.Fatalf("valid start failed: %v", err)
	}
	if h.ctx.State.Phase != PHASE_REVEAL {
		t.Fatalf("phase after start = %q, want reveal", h.ctx.State.Phase)
	}
}

func TestStartGameAssignsExactImpostorCount(t *testing.T) {
	h := newHarness(t, RoomConfig{NumImpostors: 2, NumPlayers: 6})

	players := h.fillLobby(t, 5)
	if err := h.cmd(Command{Type: CMD_START_GAME, PlayerID: players[0].ID}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	impostors := 0
	for _, p := range h.ctx.State.Players {
		switch p.Role {
		case ROLE_IMPOSTOR:
			impostors++
		case ROLE_CIVIL:
		default:
			t.Fatalf("player %s has no role after start", p.ID)
		}
	}

	if impostors != 2 {
		t.Fatalf("impostor count = %d, want 2", impostors)
	}

	if h.ctx.State.SecretWord == "" {
		t.Fatal("secret word not set")
	}
	if h.ctx.State.CurrentRound != 1 {
		t.Fatalf("round = %d, want 1", h.ctx.State.CurrentRound)
	}
}

// Role assignment must not depend on join order: over many runs every
// seat should land the impostor role at least once.
func TestRoleAssignmentNotTiedToJoinOrder(t *testing.T) {
	const runs = 200

	hits := make([]int, 4)

	for run := 0; run < runs; run++ {
		h := newHarness(t, RoomConfig{NumPlayers: 4})

		players := h.fillLobby(t, 4)
		if err := h.cmd(Command{Type: CMD_START_GAME, PlayerID: players[0].ID}); err != nil {
			t.Fatalf("start failed: %v", err)
		}

		for i, p := range h.ctx.State.Players {
			if p.Role == ROLE_IMPOSTOR {
				hits[i]++
			}
		}
	}

	for seat, n := range hits {
		if n == 0 {
			t.Fatalf("seat %d was never impostor in %d runs", seat, runs)
		}
	}
}

func TestImpostorClueOnlyForImpostors(t *testing.T) {
	h := newHarness(t, RoomConfig{ImpostorClueEnabled: true})

	players := h.fillLobby(t, 3)
	if err := h.cmd(Command{Type: CMD_START_GAME, PlayerID: players[0].ID}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	for _, p := range h.ctx.State.Players {
		if p.Role == ROLE_IMPOSTOR && p.ImpostorClue == "" {
			t.Fatalf("impostor %s got no clue", p.ID)
		}
		if p.Role == ROLE_CIVIL && p.ImpostorClue != "" {
			t.Fatalf("civil %s got the impostor clue", p.ID)
		}
	}
}

func TestFullRoundAutoAdvances(t *testing.T) {
	h := newHarness(t, RoomConfig{})

	players := h.fillLobby(t, 3)
	if err := h.cmd(Command{Type: CMD_START_GAME, PlayerID: players[0].ID}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Reveal: the last acknowledgement flips the phase
	for i, p := range h.ctx.State.Players {
		if err := h.cmd(Command{Type: CMD_ROLE_SEEN, PlayerID: p.ID}); err != nil {
			t.Fatalf("role-seen failed: %v", err)
		}

		want := PHASE_REVEAL
		if i == len(h.ctx.State.Players)-1 {
			want = PHASE_HINTS
		}
		if h.ctx.State.Phase != want {
			t.Fatalf("after role-seen %d phase = %q, want %q", i, h.ctx.State.Phase, want)
		}
	}

	// Hints
	for i, p := range h.ctx.State.Players {
		if err := h.cmd(Command{Type: CMD_SUBMIT_HINT, PlayerID: p.ID, Hint: "pista"}); err != nil {
			t.Fatalf("submit-hint failed: %v", err)
		}

		want := PHASE_HINTS
		if i == len(h.ctx.State.Players)-1 {
			want = PHASE_VOTE
		}
		if h.ctx.State.Phase != want {
			t.Fatalf("after hint %d phase = %q, want %q", i, h.ctx.State.Phase, want)
		}
	}

	// Votes: everyone votes for the first player
	target := h.ctx.State.Players[0].ID
	for _, p := range h.ctx.State.Players {
		if err := h.cmd(Command{Type: CMD_SUBMIT_VOTE, PlayerID: p.ID, VotedFor: target}); err != nil {
			t.Fatalf("submit-vote failed: %v", err)
		}
	}

	if h.ctx.State.Phase != PHASE_RESULTS {
		t.Fatalf("phase after all votes = %q, want results", h.ctx.State.Phase)
	}
	if h.ctx.State.Winner == "" {
		t.Fatal("winner not computed")
	}
}

func TestNoPhaseSkipping(t *testing.T) {
	h := newHarness(t, RoomConfig{})

	players := h.fillLobby(t, 3)

	// Commands from later phases must not move a lobby
	if err := h.cmd(Command{Type: CMD_SUBMIT_VOTE, PlayerID: players[0].ID, VotedFor: players[1].ID}); err == nil {
		t.Fatal("vote in lobby should be rejected")
	}
	if err := h.cmd(Command{Type: CMD_SUBMIT_HINT, PlayerID: players[0].ID, Hint: "x"}); err == nil {
		t.Fatal("hint in lobby should be rejected")
	}
	if h.ctx.State.Phase != PHASE_LOBBY {
		t.Fatalf("phase moved to %q without start", h.ctx.State.Phase)
	}

	_ = h.cmd(Command{Type: CMD_START_GAME, PlayerID: players[0].ID})

	if err := h.cmd(Command{Type: CMD_SUBMIT_HINT, PlayerID: players[0].ID, Hint: "x"}); err == nil {
		t.Fatal("hint during reveal should be rejected")
	}
	if h.ctx.State.Phase != PHASE_REVEAL {
		t.Fatalf("phase = %q, want reveal", h.ctx.State.Phase)
	}
}

func TestDuplicateSubmissionsKeepFirstWrite(t *testing.T) {
	h := newHarness(t, RoomConfig{})

	players := h.fillLobby(t, 3)
	_ = h.cmd(Command{Type: CMD_START_GAME, PlayerID: players[0].ID})
	for _, p := range h.ctx.State.Players {
		_ = h.cmd(Command{Type: CMD_ROLE_SEEN, PlayerID: p.ID})
	}

	first := h.ctx.State.Players[0]

	if err := h.cmd(Command{Type: CMD_SUBMIT_HINT, PlayerID: first.ID, Hint: "primera"}); err != nil {
		t.Fatalf("first hint failed: %v", err)
	}
	if err := h.cmd(Command{Type: CMD_SUBMIT_HINT, PlayerID: first.ID, Hint: "segunda"}); err == nil {
		t.Fatal("second hint should be rejected")
	}
	if first.Hint != "primera" {
		t.Fatalf("hint overwritten: %q", first.Hint)
	}

	for _, p := range h.ctx.State.Players[1:] {
		_ = h.cmd(Command{Type: CMD_SUBMIT_HINT, PlayerID: p.ID, Hint: "pista"})
	}

	second := h.ctx.State.Players[1]
	if err := h.cmd(Command{Type: CMD_SUBMIT_VOTE, PlayerID: first.ID, VotedFor: second.ID}); err != nil {
		t.Fatalf("first vote failed: %v", err)
	}
	if err := h.cmd(Command{Type: CMD_SUBMIT_VOTE, PlayerID: first.ID, VotedFor: first.ID}); err == nil {
		t.Fatal("second vote should be rejected")
	}
	if first.VotedFor != second.ID {
		t.Fatalf("vote overwritten: %q", first.VotedFor)
	}
}

func TestSuspectToggle(t *testing.T) {
	h := newHarness(t, RoomConfig{})

	players := h.fillLobby(t, 3)
	_ = h.cmd(Command{Type: CMD_START_GAME, PlayerID: players[0].ID})
	for _, p := range h.ctx.State.Players {
		_ = h.cmd(Command{Type: CMD_ROLE_SEEN, PlayerID: p.ID})
	}

	actor := h.ctx.State.Players[0]
	target := h.ctx.State.Players[1]

	if err := h.cmd(Command{Type: CMD_SUSPECT_PLAYER, PlayerID: actor.ID, SuspectID: actor.ID}); err == nil {
		t.Fatal("self-suspect should be rejected")
	}

	_ = h.cmd(Command{Type: CMD_SUSPECT_PLAYER, PlayerID: actor.ID, SuspectID: target.ID})
	if len(target.SuspectedBy) != 1 || target.SuspectedBy[0] != actor.ID {
		t.Fatalf("suspect not recorded: %v", target.SuspectedBy)
	}

	_ = h.cmd(Command{Type: CMD_SUSPECT_PLAYER, PlayerID: actor.ID, SuspectID: target.ID})
	if len(target.SuspectedBy) != 0 {
		t.Fatalf("suspect not toggled off: %v", target.SuspectedBy)
	}
}

func TestComputeWinner(t *testing.T) {
	mk := func(roles map[string]string, votes map[string]string) []*Player {
		players := make([]*Player, 0, len(roles))
		for _, id := range []string{"A", "B", "C", "D"} {
			role, ok := roles[id]
			if !ok {
				continue
			}
			players = append(players, &Player{ID: id, Role: role, VotedFor: votes[id]})
		}
		return players
	}

	// Most-voted = {B}, B is the impostor
	players := mk(
		map[string]string{"A": ROLE_CIVIL, "B": ROLE_IMPOSTOR, "C": ROLE_CIVIL},
		map[string]string{"A": "B", "B": "B", "C": "A"},
	)
	if got := computeWinner(players); got != WINNER_CIVILS {
		t.Fatalf("clear majority on impostor: got %q, want civils", got)
	}

	// Most-voted = {A}, a civil: the impostor escaped
	players = mk(
		map[string]string{"A": ROLE_CIVIL, "B": ROLE_IMPOSTOR, "C": ROLE_CIVIL},
		map[string]string{"A": "B", "B": "A", "C": "A"},
	)
	if got := computeWinner(players); got != WINNER_IMPOSTOR {
		t.Fatalf("majority on a civil: got %q, want impostor", got)
	}

	// 2-2 tie that includes the impostor
	players = mk(
		map[string]string{"A": ROLE_CIVIL, "B": ROLE_IMPOSTOR, "C": ROLE_CIVIL, "D": ROLE_CIVIL},
		map[string]string{"A": "B", "B": "C", "C": "B", "D": "C"},
	)
	if got := computeWinner(players); got != WINNER_CIVILS {
		t.Fatalf("tie including impostor: got %q, want civils", got)
	}

	// No votes at all: everyone ties at zero, impostor is in the set
	players = mk(
		map[string]string{"A": ROLE_CIVIL, "B": ROLE_IMPOSTOR, "C": ROLE_CIVIL},
		map[string]string{},
	)
	if got := computeWinner(players); got != WINNER_CIVILS {
		t.Fatalf("unvoted room: got %q, want civils", got)
	}
}

func TestPlayAgainResetsRoundState(t *testing.T) {
	h := newHarness(t, RoomConfig{ImpostorClueEnabled: true})

	players := h.fillLobby(t, 3)
	_ = h.cmd(Command{Type: CMD_START_GAME, PlayerID: players[0].ID})
	for _, p := range h.ctx.State.Players {
		_ = h.cmd(Command{Type: CMD_ROLE_SEEN, PlayerID: p.ID})
	}
	_ = h.cmd(Command{
		Type: CMD_SUSPECT_PLAYER, PlayerID: players[0].ID, SuspectID: players[1].ID,
	})
	for _, p := range h.ctx.State.Players {
		_ = h.cmd(Command{Type: CMD_SUBMIT_HINT, PlayerID: p.ID, Hint: "pista"})
	}
	target := h.ctx.State.Players[0].ID
	for _, p := range h.ctx.State.Players {
		_ = h.cmd(Command{Type: CMD_SUBMIT_VOTE, PlayerID: p.ID, VotedFor: target})
	}

	if h.ctx.State.Phase != PHASE_RESULTS {
		t.Fatalf("setup did not reach results, phase = %q", h.ctx.State.Phase)
	}

	if err := h.cmd(Command{Type: CMD_PLAY_AGAIN, PlayerID: players[0].ID}); err != nil {
		t.Fatalf("play-again failed: %v", err)
	}

	if h.ctx.State.Phase != PHASE_LOBBY {
		t.Fatalf("phase after play-again = %q, want lobby", h.ctx.State.Phase)
	}
	if h.ctx.State.SecretWord != "" || h.ctx.State.Winner != "" {
		t.Fatal("secret word / winner not cleared")
	}
	if h.ctx.State.CurrentRound != 1 {
		t.Fatalf("round = %d, want 1", h.ctx.State.CurrentRound)
	}
	if len(h.ctx.State.Players) != 3 {
		t.Fatalf("players changed: %d", len(h.ctx.State.Players))
	}

	for _, p := range h.ctx.State.Players {
		if p.Role != "" || p.Hint != "" || p.ImpostorClue != "" || p.VotedFor != "" {
			t.Fatalf("round fields not cleared for %s", p.ID)
		}
		if p.IsReady || p.HasSeenRole || len(p.SuspectedBy) != 0 {
			t.Fatalf("flags not cleared for %s", p.ID)
		}
		if p.Name == "" || p.Icon == "" {
			t.Fatalf("identity lost for %s", p.ID)
		}
	}
}

func TestHostFailoverOnDisconnect(t *testing.T) {
	h := newHarness(t, RoomConfig{})

	players := h.fillLobby(t, 3)
	host := players[0]

	chans := make(map[string]chan Event)
	for _, p := range players {
		ch := make(chan Event, 16)
		chans[p.ID] = ch
		h.ctx.BindSession(&BindRequest{PlayerID: p.ID, EvCh: ch})
	}

	h.ctx.UnbindSession(&UnbindRequest{PlayerID: host.ID, EvCh: chans[host.ID]})

	if h.ctx.State.HostID == host.ID {
		t.Fatal("host not reassigned")
	}

	newHost := h.ctx.State.FindPlayer(h.ctx.State.HostID)
	if newHost == nil || !newHost.Connected {
		t.Fatalf("new host %q is not a connected player", h.ctx.State.HostID)
	}

	// The survivors saw the disconnect and the host change
	sawHostChange := false
	for len(chans[players[1].ID]) > 0 {
		ev := <-chans[players[1].ID]
		if ev.Type == EVT_HOST_CHANGED {
			sawHostChange = true
			if ev.NewHostID != h.ctx.State.HostID {
				t.Fatalf("host-changed carries %q, state says %q", ev.NewHostID, h.ctx.State.HostID)
			}
		}
	}
	if !sawHostChange {
		t.Fatal("no host-changed event broadcast")
	}
}

func TestLastDisconnectWipesRoom(t *testing.T) {
	h := newHarness(t, RoomConfig{})

	players := h.fillLobby(t, 3)

	chans := make(map[string]chan Event)
	for _, p := range players {
		ch := make(chan Event, 16)
		chans[p.ID] = ch
		h.ctx.BindSession(&BindRequest{PlayerID: p.ID, EvCh: ch})
	}

	for _, p := range players {
		h.ctx.UnbindSession(&UnbindRequest{PlayerID: p.ID, EvCh: chans[p.ID]})
	}

	if len(h.ctx.State.Players) != 0 {
		t.Fatalf("players not wiped: %d left", len(h.ctx.State.Players))
	}
	if h.ctx.State.HostID != "" {
		t.Fatalf("hostId not cleared: %q", h.ctx.State.HostID)
	}
	if h.ctx.State.Phase != PHASE_LOBBY {
		t.Fatalf("wiped room phase = %q, want lobby", h.ctx.State.Phase)
	}
}

func TestReconnectSupersedesOldChannel(t *testing.T) {
	h := newHarness(t, RoomConfig{})

	players := h.fillLobby(t, 3)
	p := players[0]

	oldCh := make(chan Event, 16)
	h.ctx.BindSession(&BindRequest{PlayerID: p.ID, EvCh: oldCh})

	newCh := make(chan Event, 16)
	h.ctx.BindSession(&BindRequest{PlayerID: p.ID, EvCh: newCh})

	// The superseded channel is closed
	closed := false
	for {
		if _, ok := <-oldCh; !ok {
			closed = true
			break
		}
	}
	if !closed {
		t.Fatal("old channel not closed on rebind")
	}

	// The stale socket's disconnect must not unbind the replacement
	h.ctx.UnbindSession(&UnbindRequest{PlayerID: p.ID, EvCh: oldCh})
	if !h.ctx.State.FindPlayer(p.ID).Connected {
		t.Fatal("stale unbind disconnected the new channel")
	}
}
