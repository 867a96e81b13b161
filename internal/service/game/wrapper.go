package game

// Client command types, as they appear in the WebSocket `type` field.
// `connect` is special: the transport layer turns it into a BindRequest
// instead of forwarding it as a Command.
const (
	CMD_CONNECT        = "connect"
	CMD_TOGGLE_READY   = "toggle-ready"
	CMD_CHANGE_ICON    = "change-icon"
	CMD_KICK_PLAYER    = "kick-player"
	CMD_START_GAME     = "start-game"
	CMD_ROLE_SEEN      = "role-seen"
	CMD_SUBMIT_HINT    = "submit-hint"
	CMD_SUSPECT_PLAYER = "suspect-player"
	CMD_SUBMIT_VOTE    = "submit-vote"
	CMD_PLAY_AGAIN     = "play-again"
)

// Command is the flat wire form of every client action.
type Command struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`

	Icon      string `json:"icon,omitempty"`
	KickID    string `json:"kickId,omitempty"`
	Hint      string `json:"hint,omitempty"`
	SuspectID string `json:"suspectId,omitempty"`
	VotedFor  string `json:"votedFor,omitempty"`
}

// Server broadcast types. Every event carries the full room state so
// clients stay consistent by plain replacement.
const (
	EVT_STATE               = "state"
	EVT_PLAYER_JOINED       = "player-joined"
	EVT_PLAYER_CONNECTED    = "player-connected"
	EVT_PLAYER_DISCONNECTED = "player-disconnected"
	EVT_PLAYER_KICKED       = "player-kicked"
	EVT_HOST_CHANGED        = "host-changed"
	EVT_GAME_STARTED        = "game-started"
)

type Event struct {
	Type  string     `json:"type"`
	State *RoomState `json:"state,omitempty"`

	Player    *Player `json:"player,omitempty"`
	PlayerID  string  `json:"playerId,omitempty"`
	KickedID  string  `json:"kickedId,omitempty"`
	NewHostID string  `json:"newHostId,omitempty"`
}

// JoinRequest enters through HTTP but must be serialized through the room
// goroutine like everything else, so it travels in a RequestWrapper and
// answers on its own channel.
type JoinRequest struct {
	Name   string
	Icon   string
	RespCh chan JoinResult
}

type JoinResult struct {
	Player *Player
	State  *RoomState
	Err    error
}

// BindRequest attaches a connected WebSocket's event channel to a player.
// Binding the same player again supersedes the previous channel.
type BindRequest struct {
	PlayerID string
	EvCh     chan Event
}

// UnbindRequest detaches a WebSocket's event channel when its read loop
// exits. EvCh identifies the channel so a superseded binding cannot
// disconnect its replacement.
type UnbindRequest struct {
	PlayerID string
	EvCh     chan Event
}

type SnapshotRequest struct {
	RespCh chan *RoomState
}

// RequestWrapper is the envelope every room goroutine consumes; exactly
// one field is set.
type RequestWrapper struct {
	Cmd      *Command
	Join     *JoinRequest
	Bind     *BindRequest
	Unbind   *UnbindRequest
	Snapshot *SnapshotRequest
	Done     bool
}
