package state

import (
	"impostor-be/internal/config"
	"impostor-be/internal/registry"
	"impostor-be/internal/service"
	"impostor-be/internal/words"
)

type AppState struct {
	Cfg      *config.AppConfig
	RoomSvc  *service.RoomService
	Registry *registry.Registry
	Words    *words.Provider
}

func NewAppState(
	cfg *config.AppConfig,
	roomSvc *service.RoomService,
	reg *registry.Registry,
	wordsProvider *words.Provider,
) *AppState {
	return &AppState{
		Cfg:      cfg,
		RoomSvc:  roomSvc,
		Registry: reg,
		Words:    wordsProvider,
	}
}
