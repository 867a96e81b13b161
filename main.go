package main

import (
	"impostor-be/internal/api/http"
	"impostor-be/internal/config"
	"impostor-be/internal/logger"
	"impostor-be/internal/registry"
	"impostor-be/internal/service"
	"impostor-be/internal/state"
	"impostor-be/internal/store"
	"impostor-be/internal/words"

	"go.uber.org/zap"
)

func main() {
	cfg := config.InitConfig()

	logger.InitLogger(cfg.LogLevel)

	wordsProvider := words.NewProvider(cfg.Words.GeminiKey, cfg.Words.DailyLimit)

	roomStore := newRoomStore(cfg)

	roomSvc := service.NewRoomService(roomStore, wordsProvider)

	reg := registry.New(roomSvc.Snapshot)
	roomSvc.SetOnClose(reg.Remove)

	appState := state.NewAppState(
		cfg,
		roomSvc,
		reg,
		wordsProvider,
	)

	http.RunServer(appState)
}

func newRoomStore(cfg *config.AppConfig) store.RoomStore {
	if cfg.DB.Host == "" {
		zap.L().Warn("no database configured, room state will not survive restarts")
		return store.NewMemoryStore()
	}

	pg, err := store.NewPostgresStore(
		cfg.DB.Host,
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.Name,
		cfg.DB.Port,
	)
	if err != nil {
		panic(err)
	}

	return pg
}
