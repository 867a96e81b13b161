package http

import (
	"fmt"

	"impostor-be/internal/api/http/websocket"
	"impostor-be/internal/state"

	"github.com/kataras/iris/v12"
)

func RunServer(appState *state.AppState) {
	app := iris.Default()

	app.UseRouter(corsMiddleware)

	api := app.Party("/api/v1")

	api.Get("/health", Health())

	api.Post("/generate-word", GenerateWord(appState))

	api.Post("/rooms", CreateRoom(appState))
	api.Get("/rooms/public", ListPublicRooms(appState))
	api.Get("/rooms/{code}", RoomByCode(appState))
	api.Post("/rooms/{code}/join", JoinRoom(appState))
	api.Get("/rooms/{code}/ws", websocket.ConnectRoom(appState))

	api.Get("/admin", AdminStats(appState))
	api.Delete("/admin/rooms/{code}", AdminCloseRoom(appState))

	addr := fmt.Sprintf(
		"%s:%d",
		appState.Cfg.Host,
		appState.Cfg.Port,
	)

	app.Listen(addr)
}

// The browser client is served from another origin.
func corsMiddleware(ctx iris.Context) {
	ctx.Header("Access-Control-Allow-Origin", "*")
	ctx.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	ctx.Header("Access-Control-Allow-Headers", "Content-Type")

	if ctx.Method() == iris.MethodOptions {
		ctx.StatusCode(iris.StatusNoContent)
		return
	}

	ctx.Next()
}
