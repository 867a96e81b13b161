package game

// Game phases, in playing order. The only backwards edge is
// results -> lobby on play-again.
const (
	PHASE_LOBBY   = "lobby"
	PHASE_REVEAL  = "reveal"
	PHASE_HINTS   = "hints"
	PHASE_VOTE    = "vote"
	PHASE_RESULTS = "results"
)

const (
	ROLE_CIVIL    = "civil"
	ROLE_IMPOSTOR = "impostor"
)

const (
	MODE_LIST   = "list"
	MODE_AI     = "ai"
	MODE_RANDOM = "random"
)

const (
	WINNER_CIVILS   = "civils"
	WINNER_IMPOSTOR = "impostor"
)

// Fixed icon palette; within a room every player holds a distinct icon.
var IconPalette = []string{"🦊", "🐱", "🐶", "🐼", "🐵", "🐸", "🐯", "🐰", "🐻", "🐨", "🐷", "🐙"}

// RoomConfig is immutable after room creation.
type RoomConfig struct {
	Mode                string   `json:"mode"`
	Topic               string   `json:"topic,omitempty"`
	Categories          []string `json:"categories,omitempty"`
	NumImpostors        int      `json:"numImpostors"`
	NumPlayers          int      `json:"numPlayers"`
	IsPublic            bool     `json:"isPublic"`
	ImpostorClueEnabled bool     `json:"impostorClueEnabled,omitempty"`
	RoomName            string   `json:"roomName,omitempty"`
}

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`

	Role         string `json:"role,omitempty"`
	Hint         string `json:"hint,omitempty"`
	ImpostorClue string `json:"impostorClue,omitempty"`
	VotedFor     string `json:"votedFor,omitempty"`

	Connected   bool     `json:"connected"`
	IsReady     bool     `json:"isReady"`
	HasSeenRole bool     `json:"hasSeenRole"`
	SuspectedBy []string `json:"suspectedBy,omitempty"`
}

// RoomState is the authoritative per-room state, owned exclusively by the
// room's goroutine and persisted after every mutation. Player order is
// join order.
type RoomState struct {
	Code         string     `json:"code"`
	Config       RoomConfig `json:"config"`
	Players      []*Player  `json:"players"`
	HostID       string     `json:"hostId,omitempty"`
	Phase        string     `json:"phase"`
	SecretWord   string     `json:"secretWord,omitempty"`
	CurrentRound int        `json:"currentRound"`
	Winner       string     `json:"winner,omitempty"`
	CreatedAt    int64      `json:"createdAt"`
}

func NewRoomState(code string, cfg RoomConfig, createdAt int64) *RoomState {
	return &RoomState{
		Code:      code,
		Config:    cfg,
		Players:   make([]*Player, 0, cfg.NumPlayers),
		Phase:     PHASE_LOBBY,
		CreatedAt: createdAt,
	}
}

func (rs *RoomState) FindPlayer(id string) *Player {
	for _, p := range rs.Players {
		if p.ID == id {
			return p
		}
	}

	return nil
}

func (rs *RoomState) IconInUse(icon, exceptID string) bool {
	for _, p := range rs.Players {
		if p.ID != exceptID && p.Icon == icon {
			return true
		}
	}

	return false
}

func (rs *RoomState) ConnectedCount() int {
	n := 0
	for _, p := range rs.Players {
		if p.Connected {
			n++
		}
	}

	return n
}

// EarliestConnected returns the earliest-joined player that is still
// connected, or nil if nobody is.
func (rs *RoomState) EarliestConnected() *Player {
	for _, p := range rs.Players {
		if p.Connected {
			return p
		}
	}

	return nil
}

func (rs *RoomState) Clone() *RoomState {
	cp := *rs

	cp.Players = make([]*Player, len(rs.Players))
	for i, p := range rs.Players {
		pc := *p
		if p.SuspectedBy != nil {
			pc.SuspectedBy = append([]string(nil), p.SuspectedBy...)
		}
		cp.Players[i] = &pc
	}

	if rs.Config.Categories != nil {
		cp.Config.Categories = append([]string(nil), rs.Config.Categories...)
	}

	return &cp
}
