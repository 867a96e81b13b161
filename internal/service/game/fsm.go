package game

import (
	"time"

	"go.uber.org/zap"

	"impostor-be/internal/store"
	"impostor-be/internal/words"
)

// GameMachine owns one room. Its event loop is the only goroutine that
// ever touches the room state, so commands for a room are strictly
// serialized; rooms run fully in parallel with each other.
type GameMachine struct {
	ctx     *GameContext
	handler PhaseHandler
	// All requests for this room funnel through here
	reqCh chan RequestWrapper

	createdAt time.Time
}

func NewGameMachine(state *RoomState, st store.RoomStore, src words.Source) *GameMachine {
	gm := &GameMachine{
		ctx: NewGameContext(state, st, src),
		// Handler matches the persisted phase so a revived room resumes
		// where it stopped
		handler:   handlerFor(state.Phase),
		reqCh:     make(chan RequestWrapper, 64),
		createdAt: time.Now(),
	}

	gm.handler.SetOnSwitch(func(nextPhase string) {
		gm.ctx.State.Phase = nextPhase
	})

	return gm
}

func (gm *GameMachine) ReqCh() chan RequestWrapper {
	return gm.reqCh
}

func (gm *GameMachine) CreatedAt() time.Time {
	return gm.createdAt
}

func (gm *GameMachine) Code() string {
	return gm.ctx.State.Code
}

func (gm *GameMachine) Start() {
	defer zap.L().Info(
		"room goroutine exited",
		zap.String("room_code", gm.ctx.State.Code),
	)

	gm.handler.OnEnter(gm.ctx)

	for req := range gm.reqCh {
		if req.Done {
			gm.closeSessions()
			return
		}

		switch {
		case req.Bind != nil:
			gm.ctx.BindSession(req.Bind)

		case req.Unbind != nil:
			gm.ctx.UnbindSession(req.Unbind)

		case req.Snapshot != nil:
			req.Snapshot.RespCh <- gm.ctx.State.Clone()

		default:
			if err := gm.handler.OnHandle(gm.ctx, req); err != nil {
				// Guard violations are stale-client noise, not errors:
				// log and move on, the client sees no state change
				zap.L().Debug(
					"request rejected",
					zap.String("room_code", gm.ctx.State.Code),
					zap.String("phase", gm.handler.Phase()),
					zap.Error(err),
				)
			}
		}

		// A handler (or a disconnect wipe) may have moved the phase
		if gm.ctx.State.Phase != gm.handler.Phase() {
			gm.switchPhase()
			gm.handler.OnEnter(gm.ctx)
		}
	}

	gm.closeSessions()
}

func (gm *GameMachine) switchPhase() {
	gm.handler.OnExit(gm.ctx)

	zap.L().Info(
		"phase switched",
		zap.String("room_code", gm.ctx.State.Code),
		zap.String("from", gm.handler.Phase()),
		zap.String("to", gm.ctx.State.Phase),
	)

	newHandler := handlerFor(gm.ctx.State.Phase)
	newHandler.SetOnSwitch(func(nextPhase string) {
		gm.ctx.State.Phase = nextPhase
	})

	gm.handler = newHandler
}

func handlerFor(phase string) PhaseHandler {
	switch phase {
	case PHASE_REVEAL:
		return NewRevealHandler()
	case PHASE_HINTS:
		return NewHintsHandler()
	case PHASE_VOTE:
		return NewVoteHandler()
	case PHASE_RESULTS:
		return NewResultsHandler()
	default:
		return NewLobbyHandler()
	}
}

func (gm *GameMachine) closeSessions() {
	for id, ch := range gm.ctx.sessions {
		close(ch)
		delete(gm.ctx.sessions, id)
	}
}
