package main

import (
	_ "github.com/joho/godotenv/autoload"

	"ad-delivery-engine/internal/app/server"
	"ad-delivery-engine/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel)
	server.Run(cfg)
}
