package handler

import (
	"carshare/internal/app/orchestrator"
	"carshare/internal/app/store"
	"carshare/internal/configs"
)

// AppDeps bundles the collaborators the HTTP layer needs.
type AppDeps struct {
	Orchestrator *orchestrator.Orchestrator
	Store        store.Store
	Config       *configs.AppConfig
}
