package websocket

import (
	"encoding/json"
	"time"

	"impostor-be/internal/service"
	"impostor-be/internal/service/game"
	"impostor-be/internal/state"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

// ConnectRoom upgrades a client socket and multiplexes it onto the room's
// goroutine. The socket stays inert until the client sends a
// connect{playerId} frame binding it to an already-joined player; after
// that, inbound frames become commands and outbound events follow the
// room's broadcasts.
func ConnectRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		code := service.NormalizeCode(ctx.Params().Get("code"))

		reqCh, err := appState.RoomSvc.RoomChannel(code)
		if err != nil {
			ctx.StatusCode(iris.StatusNotFound)
			return
		}

		conn, err := upgrader.Upgrade(
			ctx.ResponseWriter(),
			ctx.Request(),
			nil,
		)
		if err != nil {
			zap.L().Error("websocket upgrade failed", zap.Error(err))
			ctx.StatusCode(iris.StatusBadRequest)
			return
		}

		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))
		conn.SetPongHandler(heartbeatHandler(conn))

		clientIP := ctx.RemoteAddr()

		// An unbound socket relays exactly one command type: connect
		playerID := awaitConnect(conn, clientIP)
		if playerID == "" {
			return
		}

		evCh := make(chan game.Event, 64)

		bindReq := game.RequestWrapper{
			Bind: &game.BindRequest{PlayerID: playerID, EvCh: evCh},
		}

		select {
		case reqCh <- bindReq:
		case <-time.After(3 * time.Second):
			zap.L().Warn(
				"room did not accept connect",
				zap.String("room_code", code),
				zap.String("player_id", playerID),
			)
			return
		}

		zap.L().Info(
			"player socket bound",
			zap.String("room_code", code),
			zap.String("player_id", playerID),
			zap.String("client_ip", clientIP),
		)

		writeDoneCh := make(chan struct{})
		defer close(writeDoneCh)

		// Write pump: heartbeat pings plus whatever the room broadcasts
		go func() {
			ticker := time.NewTicker(HEARTBEAT_INTERVAL)
			defer ticker.Stop()

			for {
				select {
				case <-writeDoneCh:
					return

				case <-ticker.C:
					conn.SetWriteDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))

					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						zap.L().Debug(
							"heartbeat failed",
							zap.String("client_ip", clientIP),
							zap.Error(err),
						)
						return
					}

				case ev, ok := <-evCh:
					if !ok {
						// The room dropped this binding (reconnect
						// superseded it, kick, or shutdown): tear the
						// socket down so the read loop exits too
						conn.Close()
						return
					}

					if err := conn.WriteJSON(ev); err != nil {
						zap.L().Debug(
							"event delivery failed",
							zap.String("client_ip", clientIP),
							zap.Error(err),
						)
						return
					}
				}
			}
		}()

		// Read loop
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(
					err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					zap.L().Debug(
						"read failed",
						zap.String("client_ip", clientIP),
						zap.Error(err),
					)
				}

				break
			}

			var cmd game.Command

			if err := json.Unmarshal(msg, &cmd); err != nil {
				// Stale-client noise: drop the frame, no error reply
				zap.L().Debug(
					"unparseable command dropped",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)
				continue
			}

			if cmd.Type == game.CMD_CONNECT {
				// Already bound; a rebind belongs to a fresh socket
				continue
			}

			select {
			case reqCh <- game.RequestWrapper{Cmd: &cmd}:
			default:
				zap.L().Warn(
					"command dropped, room saturated",
					zap.String("room_code", code),
					zap.String("player_id", playerID),
				)
			}
		}

		// Client is gone: run the disconnect transition
		unbindReq := game.RequestWrapper{
			Unbind: &game.UnbindRequest{PlayerID: playerID, EvCh: evCh},
		}

		select {
		case reqCh <- unbindReq:
		case <-time.After(3 * time.Second):
			zap.L().Warn(
				"room did not accept disconnect",
				zap.String("room_code", code),
				zap.String("player_id", playerID),
			)
		}

		zap.L().Info(
			"player socket closed",
			zap.String("room_code", code),
			zap.String("player_id", playerID),
		)
	}
}

// awaitConnect reads frames until the first well-formed connect command
// and returns its player id, or "" once the socket dies.
func awaitConnect(conn *websocket.Conn, clientIP string) string {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return ""
		}

		var cmd game.Command

		if err := json.Unmarshal(msg, &cmd); err != nil {
			zap.L().Debug(
				"unparseable frame before connect",
				zap.String("client_ip", clientIP),
				zap.Error(err),
			)
			continue
		}

		if cmd.Type != game.CMD_CONNECT || cmd.PlayerID == "" {
			zap.L().Debug(
				"frame ignored, socket not bound yet",
				zap.String("client_ip", clientIP),
				zap.String("type", cmd.Type),
			)
			continue
		}

		return cmd.PlayerID
	}
}
