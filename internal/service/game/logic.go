package game

import (
	"context"
	"errors"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"impostor-be/internal/words"
)

// The round moves strictly forward through five phases:
// 1. lobby:   players join, pick icons and ready up; the host starts
// 2. reveal:  everyone acknowledges their role card
// 3. hints:   everyone drops one clue; suspicions can be toggled freely
// 4. vote:    everyone votes once; results are computed on the last vote
// 5. results: winner is shown; play-again loops back to the lobby
//
// The only other edges are the disconnect transitions handled by
// GameContext.UnbindSession.

var (
	ErrRoomFull    = errors.New("room full")
	ErrGameStarted = errors.New("game already started")
)

type PhaseHandler interface {
	Phase() string

	OnEnter(ctx *GameContext)
	OnHandle(ctx *GameContext, req RequestWrapper) error
	OnExit(ctx *GameContext)

	SetOnSwitch(func(nextPhase string))
}

func respondJoin(req *JoinRequest, res JoinResult) {
	select {
	case req.RespCh <- res:
	default:
		zap.L().Warn("join response dropped, caller gone")
	}
}

// Lobby phase handler.
type lobbyHandler struct {
	onSwitch func(string)
}

func NewLobbyHandler() *lobbyHandler {
	return &lobbyHandler{}
}

func (lh *lobbyHandler) Phase() string {
	return PHASE_LOBBY
}

func (lh *lobbyHandler) OnEnter(ctx *GameContext) {
}

func (lh *lobbyHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if req.Join != nil {
		return lh.handleJoin(ctx, req.Join)
	}

	cmd := req.Cmd
	if cmd == nil {
		return errors.New("empty request")
	}

	switch cmd.Type {
	case CMD_TOGGLE_READY:
		p := ctx.State.FindPlayer(cmd.PlayerID)
		if p == nil {
			return errors.New("unknown player")
		}

		p.IsReady = !p.IsReady
		ctx.PersistAndBroadcast(Event{Type: EVT_STATE})

		return nil

	case CMD_CHANGE_ICON:
		p := ctx.State.FindPlayer(cmd.PlayerID)
		if p == nil {
			return errors.New("unknown player")
		}
		if cmd.Icon == "" {
			return errors.New("no icon given")
		}
		if ctx.State.IconInUse(cmd.Icon, p.ID) {
			return errors.New("icon already taken")
		}

		p.Icon = cmd.Icon
		ctx.PersistAndBroadcast(Event{Type: EVT_STATE})

		return nil

	case CMD_KICK_PLAYER:
		if cmd.PlayerID != ctx.State.HostID {
			return errors.New("only the host can kick")
		}
		if cmd.KickID == cmd.PlayerID {
			return errors.New("host cannot kick themselves")
		}

		target := ctx.State.FindPlayer(cmd.KickID)
		if target == nil {
			return errors.New("unknown kick target")
		}

		players := ctx.State.Players[:0]
		for _, p := range ctx.State.Players {
			if p.ID != target.ID {
				players = append(players, p)
			}
		}
		ctx.State.Players = players

		ctx.DropSession(target.ID)

		zap.L().Info(
			"player kicked",
			zap.String("room_code", ctx.State.Code),
			zap.String("kicked_id", target.ID),
		)

		ctx.PersistAndBroadcast(Event{Type: EVT_PLAYER_KICKED, KickedID: target.ID})

		return nil

	case CMD_START_GAME:
		return lh.handleStart(ctx, cmd)

	default:
		return errors.New("request not valid in lobby")
	}
}

func (lh *lobbyHandler) handleJoin(ctx *GameContext, join *JoinRequest) error {
	if len(ctx.State.Players) >= ctx.State.Config.NumPlayers {
		respondJoin(join, JoinResult{Err: ErrRoomFull})
		return nil
	}

	icon := join.Icon
	if icon == "" {
		icon = IconPalette[0]
	}
	if ctx.State.IconInUse(icon, "") {
		for _, candidate := range IconPalette {
			if !ctx.State.IconInUse(candidate, "") {
				icon = candidate
				break
			}
		}
	}

	player := &Player{
		ID:        GenID(),
		Name:      join.Name,
		Icon:      icon,
		Connected: true,
	}

	ctx.State.Players = append(ctx.State.Players, player)

	// First joiner owns the room
	if ctx.State.HostID == "" {
		ctx.State.HostID = player.ID
	}

	if err := ctx.Persist(); err != nil {
		respondJoin(join, JoinResult{Err: errors.New("failed to save room")})
		return nil
	}

	joined := *player
	ctx.Broadcast(Event{
		Type:   EVT_PLAYER_JOINED,
		Player: &joined,
		State:  ctx.State.Clone(),
	})

	respondJoin(join, JoinResult{Player: &joined, State: ctx.State.Clone()})

	zap.L().Info(
		"player joined",
		zap.String("room_code", ctx.State.Code),
		zap.String("player_id", player.ID),
		zap.String("player_name", player.Name),
	)

	return nil
}

func (lh *lobbyHandler) handleStart(ctx *GameContext, cmd *Command) error {
	if cmd.PlayerID != ctx.State.HostID {
		return errors.New("only the host can start the game")
	}
	if len(ctx.State.Players) < 3 {
		return errors.New("need at least 3 players")
	}
	for _, p := range ctx.State.Players {
		if !p.IsReady {
			return errors.New("not all players are ready")
		}
	}

	assignRoles(ctx.State)

	word, clue := pickWord(ctx)
	ctx.State.SecretWord = word

	if ctx.State.Config.ImpostorClueEnabled && clue != "" {
		for _, p := range ctx.State.Players {
			if p.Role == ROLE_IMPOSTOR {
				p.ImpostorClue = clue
			}
		}
	}

	ctx.State.CurrentRound++
	ctx.State.Winner = ""

	lh.onSwitch(PHASE_REVEAL)

	zap.L().Info(
		"game started",
		zap.String("room_code", ctx.State.Code),
		zap.Int("round", ctx.State.CurrentRound),
		zap.Int("players", len(ctx.State.Players)),
	)

	ctx.PersistAndBroadcast(Event{Type: EVT_GAME_STARTED})

	return nil
}

func (lh *lobbyHandler) OnExit(ctx *GameContext) {
}

func (lh *lobbyHandler) SetOnSwitch(onSwitch func(string)) {
	lh.onSwitch = onSwitch
}

// assignRoles deals exactly numImpostors impostor roles via an unbiased
// shuffle of player indices and clears every per-round player field.
func assignRoles(state *RoomState) {
	n := len(state.Players)

	numImpostors := state.Config.NumImpostors
	if numImpostors < 1 {
		numImpostors = 1
	}
	if numImpostors >= n {
		numImpostors = n - 1
	}

	impostors := make(map[int]bool, numImpostors)
	for _, idx := range rand.Perm(n)[:numImpostors] {
		impostors[idx] = true
	}

	for i, p := range state.Players {
		p.Role = ROLE_CIVIL
		if impostors[i] {
			p.Role = ROLE_IMPOSTOR
		}

		p.Hint = ""
		p.ImpostorClue = ""
		p.VotedFor = ""
		p.HasSeenRole = false
		p.SuspectedBy = nil
	}
}

// pickWord resolves the secret word and the impostor clue for the
// configured mode. The AI call blocks the room until the provider's own
// timeout fires, which is fine for a once-per-round event.
func pickWord(ctx *GameContext) (string, string) {
	cfg := ctx.State.Config

	switch cfg.Mode {
	case MODE_AI:
		category := ""
		if len(cfg.Categories) > 0 {
			category = cfg.Categories[0]
		}

		res := ctx.words.Generate(context.Background(), cfg.Topic, category, cfg.ImpostorClueEnabled)

		return res.Word, res.Hint

	case MODE_RANDOM:
		category := words.RandomCategory()
		return words.PickFrom(category), words.GenericHint(category)

	default: // list
		category := "general"
		if len(cfg.Categories) > 0 {
			category = cfg.Categories[rand.Intn(len(cfg.Categories))]
		}

		return words.PickFrom(category), words.GenericHint(category)
	}
}

// Reveal phase handler: waits for every player to acknowledge their role
// card before the hint round opens.
type revealHandler struct {
	onSwitch func(string)
}

func NewRevealHandler() *revealHandler {
	return &revealHandler{}
}

func (rh *revealHandler) Phase() string {
	return PHASE_REVEAL
}

func (rh *revealHandler) OnEnter(ctx *GameContext) {
}

func (rh *revealHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if req.Join != nil {
		respondJoin(req.Join, JoinResult{Err: ErrGameStarted})
		return nil
	}

	cmd := req.Cmd
	if cmd == nil {
		return errors.New("empty request")
	}

	if cmd.Type != CMD_ROLE_SEEN {
		return errors.New("request not valid during reveal")
	}

	p := ctx.State.FindPlayer(cmd.PlayerID)
	if p == nil {
		return errors.New("unknown player")
	}
	if p.HasSeenRole {
		return errors.New("role already acknowledged")
	}

	p.HasSeenRole = true

	allSeen := true
	for _, p := range ctx.State.Players {
		if !p.HasSeenRole {
			allSeen = false
			break
		}
	}

	// The advance rides the same broadcast as the last acknowledgement
	if allSeen {
		rh.onSwitch(PHASE_HINTS)
	}

	ctx.PersistAndBroadcast(Event{Type: EVT_STATE})

	return nil
}

func (rh *revealHandler) OnExit(ctx *GameContext) {
}

func (rh *revealHandler) SetOnSwitch(onSwitch func(string)) {
	rh.onSwitch = onSwitch
}

// Hints phase handler: one immutable hint per player, free suspicion
// toggling on the side.
type hintsHandler struct {
	onSwitch func(string)
}

func NewHintsHandler() *hintsHandler {
	return &hintsHandler{}
}

func (hh *hintsHandler) Phase() string {
	return PHASE_HINTS
}

func (hh *hintsHandler) OnEnter(ctx *GameContext) {
}

func (hh *hintsHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if req.Join != nil {
		respondJoin(req.Join, JoinResult{Err: ErrGameStarted})
		return nil
	}

	cmd := req.Cmd
	if cmd == nil {
		return errors.New("empty request")
	}

	switch cmd.Type {
	case CMD_SUBMIT_HINT:
		p := ctx.State.FindPlayer(cmd.PlayerID)
		if p == nil {
			return errors.New("unknown player")
		}
		// First write wins
		if p.Hint != "" {
			return errors.New("hint already submitted")
		}

		hint := strings.TrimSpace(cmd.Hint)
		if hint == "" {
			return errors.New("empty hint")
		}

		p.Hint = hint

		allIn := true
		for _, p := range ctx.State.Players {
			if p.Hint == "" {
				allIn = false
				break
			}
		}

		if allIn {
			hh.onSwitch(PHASE_VOTE)
		}

		ctx.PersistAndBroadcast(Event{Type: EVT_STATE})

		return nil

	case CMD_SUSPECT_PLAYER:
		if cmd.PlayerID == cmd.SuspectID {
			return errors.New("cannot suspect yourself")
		}

		actor := ctx.State.FindPlayer(cmd.PlayerID)
		target := ctx.State.FindPlayer(cmd.SuspectID)
		if actor == nil || target == nil {
			return errors.New("unknown player")
		}

		toggleSuspect(target, actor.ID)
		ctx.PersistAndBroadcast(Event{Type: EVT_STATE})

		return nil

	default:
		return errors.New("request not valid during hints")
	}
}

func (hh *hintsHandler) OnExit(ctx *GameContext) {
}

func (hh *hintsHandler) SetOnSwitch(onSwitch func(string)) {
	hh.onSwitch = onSwitch
}

func toggleSuspect(target *Player, actorID string) {
	for i, id := range target.SuspectedBy {
		if id == actorID {
			target.SuspectedBy = append(target.SuspectedBy[:i], target.SuspectedBy[i+1:]...)
			return
		}
	}

	target.SuspectedBy = append(target.SuspectedBy, actorID)
}

// Vote phase handler: one immutable vote per player; the last vote
// computes the winner and moves to results in the same broadcast.
type voteHandler struct {
	onSwitch func(string)
}

func NewVoteHandler() *voteHandler {
	return &voteHandler{}
}

func (vh *voteHandler) Phase() string {
	return PHASE_VOTE
}

func (vh *voteHandler) OnEnter(ctx *GameContext) {
}

func (vh *voteHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if req.Join != nil {
		respondJoin(req.Join, JoinResult{Err: ErrGameStarted})
		return nil
	}

	cmd := req.Cmd
	if cmd == nil {
		return errors.New("empty request")
	}

	if cmd.Type != CMD_SUBMIT_VOTE {
		return errors.New("request not valid during voting")
	}

	p := ctx.State.FindPlayer(cmd.PlayerID)
	if p == nil {
		return errors.New("unknown player")
	}
	// First write wins
	if p.VotedFor != "" {
		return errors.New("vote already submitted")
	}
	if ctx.State.FindPlayer(cmd.VotedFor) == nil {
		return errors.New("unknown vote target")
	}

	p.VotedFor = cmd.VotedFor

	allIn := true
	for _, p := range ctx.State.Players {
		if p.VotedFor == "" {
			allIn = false
			break
		}
	}

	if allIn {
		ctx.State.Winner = computeWinner(ctx.State.Players)
		vh.onSwitch(PHASE_RESULTS)

		zap.L().Info(
			"round finished",
			zap.String("room_code", ctx.State.Code),
			zap.String("winner", ctx.State.Winner),
		)
	}

	ctx.PersistAndBroadcast(Event{Type: EVT_STATE})

	return nil
}

func (vh *voteHandler) OnExit(ctx *GameContext) {
}

func (vh *voteHandler) SetOnSwitch(onSwitch func(string)) {
	vh.onSwitch = onSwitch
}

// computeWinner tallies votes and collects everyone tied at the maximum.
// Civils win iff that most-voted set contains at least one impostor; a
// tie that misses every impostor means the impostor escaped unnamed. With
// no votes at all everyone ties at zero, which hands the round to the
// civils.
func computeWinner(players []*Player) string {
	votes := make(map[string]int)
	for _, p := range players {
		if p.VotedFor != "" {
			votes[p.VotedFor]++
		}
	}

	maxVotes := 0
	for _, count := range votes {
		if count > maxVotes {
			maxVotes = count
		}
	}

	for _, p := range players {
		if votes[p.ID] == maxVotes && p.Role == ROLE_IMPOSTOR {
			return WINNER_CIVILS
		}
	}

	return WINNER_IMPOSTOR
}

// Results phase handler: the round is over, play-again resets back to the
// lobby keeping seats and config.
type resultsHandler struct {
	onSwitch func(string)
}

func NewResultsHandler() *resultsHandler {
	return &resultsHandler{}
}

func (rh *resultsHandler) Phase() string {
	return PHASE_RESULTS
}

func (rh *resultsHandler) OnEnter(ctx *GameContext) {
}

func (rh *resultsHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if req.Join != nil {
		respondJoin(req.Join, JoinResult{Err: ErrGameStarted})
		return nil
	}

	cmd := req.Cmd
	if cmd == nil {
		return errors.New("empty request")
	}

	if cmd.Type != CMD_PLAY_AGAIN {
		return errors.New("request not valid during results")
	}

	if ctx.State.FindPlayer(cmd.PlayerID) == nil {
		return errors.New("unknown player")
	}

	for _, p := range ctx.State.Players {
		p.Role = ""
		p.Hint = ""
		p.ImpostorClue = ""
		p.VotedFor = ""
		p.IsReady = false
		p.HasSeenRole = false
		p.SuspectedBy = nil
	}

	ctx.State.SecretWord = ""
	ctx.State.Winner = ""
	ctx.State.CurrentRound = 1

	rh.onSwitch(PHASE_LOBBY)

	ctx.PersistAndBroadcast(Event{Type: EVT_STATE})

	return nil
}

func (rh *resultsHandler) OnExit(ctx *GameContext) {
}

func (rh *resultsHandler) SetOnSwitch(onSwitch func(string)) {
	rh.onSwitch = onSwitch
}
