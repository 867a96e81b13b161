package http

import (
	"errors"
	"time"

	"impostor-be/internal/registry"
	"impostor-be/internal/service"
	"impostor-be/internal/service/game"
	"impostor-be/internal/state"

	"github.com/kataras/iris/v12"
)

type createRoomRequest struct {
	Config game.RoomConfig `json:"config"`
}

type joinRoomRequest struct {
	Player struct {
		Name string `json:"name"`
		Icon string `json:"icon"`
	} `json:"player"`
}

type generateWordRequest struct {
	Topic    string `json:"topic"`
	Category string `json:"category"`
	NeedHint bool   `json:"needHint"`
}

func Health() iris.Handler {
	return func(ctx iris.Context) {
		ctx.JSON(iris.Map{
			"ok":      true,
			"service": "impostor-be",
		})
	}
}

func CreateRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req createRoomRequest

		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": "invalid request body",
			})
			return
		}

		code, err := appState.RoomSvc.CreateRoom(req.Config)
		if err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": err.Error(),
			})
			return
		}

		if req.Config.IsPublic {
			appState.Registry.Register(registry.Entry{
				Code:        code,
				Name:        req.Config.RoomName,
				Topic:       topicOf(req.Config),
				PlayerCount: 0,
				MaxPlayers:  req.Config.NumPlayers,
				Phase:       game.PHASE_LOBBY,
				CreatedAt:   time.Now().UnixMilli(),
			})
		}

		ctx.JSON(iris.Map{
			"code":    code,
			"success": true,
		})
	}
}

func topicOf(cfg game.RoomConfig) string {
	if cfg.Topic != "" {
		return cfg.Topic
	}
	if len(cfg.Categories) > 0 {
		return cfg.Categories[0]
	}

	return "general"
}

func JoinRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req joinRoomRequest

		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": "invalid request body",
			})
			return
		}

		code := ctx.Params().Get("code")

		player, roomState, err := appState.RoomSvc.JoinRoom(code, req.Player.Name, req.Player.Icon)
		if err != nil {
			status := iris.StatusBadRequest
			if errors.Is(err, service.ErrRoomNotFound) {
				status = iris.StatusNotFound
			}

			ctx.StatusCode(status)
			ctx.JSON(iris.Map{
				"error": err.Error(),
			})
			return
		}

		ctx.JSON(iris.Map{
			"playerId": player.ID,
			"state":    roomState,
		})
	}
}

func RoomByCode(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		code := ctx.Params().Get("code")

		snap, err := appState.RoomSvc.Snapshot(code)
		if err != nil {
			ctx.StatusCode(iris.StatusNotFound)
			ctx.JSON(iris.Map{
				"error": "room not found",
			})
			return
		}

		ctx.JSON(snap)
	}
}

func ListPublicRooms(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		ctx.JSON(iris.Map{
			"rooms": appState.Registry.List(),
		})
	}
}

func GenerateWord(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req generateWordRequest

		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": "invalid request body",
			})
			return
		}

		res := appState.Words.Generate(
			ctx.Request().Context(),
			req.Topic,
			req.Category,
			req.NeedHint,
		)

		ctx.JSON(res)
	}
}

func AdminStats(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		if ctx.URLParam("pin") != appState.Cfg.AdminPIN || appState.Cfg.AdminPIN == "" {
			ctx.StatusCode(iris.StatusUnauthorized)
			ctx.JSON(iris.Map{
				"error": "unauthorized",
			})
			return
		}

		usage := appState.Words.Usage()

		usagePct := 0
		if usage.DailyLimit > 0 {
			usagePct = usage.WindowCount * 100 / usage.DailyLimit
			if usagePct > 100 {
				usagePct = 100
			}
		}

		ctx.JSON(iris.Map{
			"timestamp":         time.Now().UnixMilli(),
			"totalRoomsCreated": appState.RoomSvc.RoomsCreated(),
			"publicRooms":       appState.Registry.Len(),
			"publicRoomsDetail": appState.Registry.Entries(),
			"wordDailyLimit":    usage.DailyLimit,
			"wordWindowCount":   usage.WindowCount,
			"wordWindowStart":   usage.WindowStart,
			"wordTotalCalls":    usage.TotalCalls,
			"wordUsagePct":      usagePct,
			"wordNearLimit":     usagePct >= 80,
		})
	}
}

func AdminCloseRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		if ctx.URLParam("pin") != appState.Cfg.AdminPIN || appState.Cfg.AdminPIN == "" {
			ctx.StatusCode(iris.StatusUnauthorized)
			ctx.JSON(iris.Map{
				"error": "unauthorized",
			})
			return
		}

		code := service.NormalizeCode(ctx.Params().Get("code"))

		before := appState.Registry.Len()
		appState.Registry.Remove(code)

		if appState.Registry.Len() == before {
			ctx.StatusCode(iris.StatusNotFound)
			ctx.JSON(iris.Map{
				"ok":    false,
				"error": "room not found",
			})
			return
		}

		ctx.JSON(iris.Map{
			"ok":   true,
			"code": code,
		})
	}
}
