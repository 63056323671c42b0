// blacklistd is the standalone blacklist service. It owns the bloom filter
// and the exact URL store and speaks the line protocol over TCP.
package main

import (
	"flag"

	"mailfan/blacklist"
	"mailfan/config"
	"mailfan/utils"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to config file")
	flag.Parse()

	logger := utils.InitLogger()
	defer logger.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		utils.Log.Fatalw("failed to load config", "error", err)
	}

	srv, err := blacklist.NewServer(
		cfg.BlacklistService.DataDir,
		cfg.BlacklistService.BloomBits,
		cfg.BlacklistService.BloomHash,
	)
	if err != nil {
		utils.Log.Fatalw("failed to initialize blacklist service", "error", err)
	}
	defer srv.Close()

	if err := srv.ListenAndServe(cfg.BlacklistService.Listen); err != nil {
		utils.Log.Fatalw("blacklist service stopped", "error", err)
	}
}
