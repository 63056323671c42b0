package main

import (
	"fmt"
	"time"

	"mailfan/blacklist"
	"mailfan/config"
	"mailfan/engine"
	"mailfan/handlers/api"
	"mailfan/storage"
	"mailfan/utils"
)

func main() {
	logger := utils.InitLogger()
	defer logger.Sync()

	cfg, err := config.LoadConfig("config.toml")
	if err != nil {
		utils.Log.Fatalw("failed to load config", "error", err)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		utils.Log.Fatalw("failed to open store", "error", err)
	}
	defer store.Close()

	if err := store.SeedUsers(cfg.Users.Seed); err != nil {
		utils.Log.Fatalw("failed to seed users", "error", err)
	}

	client := blacklist.NewClient(cfg.Blacklist.Addr, time.Duration(cfg.Blacklist.TimeoutSec)*time.Second)
	eng := engine.New(store, client)

	app := api.NewApp(cfg, store, eng, client)

	utils.Log.Infow("starting server", "port", cfg.Server.Port)
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		utils.Log.Fatalw("server stopped", "error", err)
	}
}
