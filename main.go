package main

import (
	"github.com/cppla/quill/config"
	"github.com/cppla/quill/models"
	"github.com/cppla/quill/routes"
	"github.com/cppla/quill/storage"
	"github.com/cppla/quill/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase(cfg, models.All()...)

	deps := routes.Deps{DB: db, Cache: utils.NewMemoryCache()}
	if cfg.CacheBackend == "redis" {
		rc, err := utils.NewRedis(cfg)
		if err != nil {
			utils.Sugar.Warnf("redis unavailable, falling back to in-memory cache: %v", err)
			_ = rc.Close()
		} else {
			deps.Redis = rc
			deps.Cache = utils.NewRedisCache(rc)
		}
	}

	media, err := storage.New(cfg)
	if err != nil {
		utils.Sugar.Fatalf("media storage: %v", err)
	}
	deps.Media = media

	r, err := routes.SetupRouter(cfg, deps)
	if err != nil {
		utils.Sugar.Fatalf("router: %v", err)
	}

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
