package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"pressbot/internal/app"
	"pressbot/pkg/config"
	"pressbot/pkg/logger"
	"pressbot/pkg/shutdown"
)

// set via -ldflags at build time
var (
	version   = "dev"
	commit    = ""
	buildDate = ""
)

func main() {
	_ = godotenv.Load(".env")

	addrFlag, dbFlag, cfgFlag, setFlags := config.ParseCommandFlags()
	cfgPath := config.ResolveConfigPath(cfgFlag, setFlags["config"])

	eff := config.LoadEffective(cfgPath, addrFlag, dbFlag, setFlags)

	logger.Init(eff.Config.Logging.Level)

	ctx, stop := shutdown.SetupSignalHandler(context.Background())
	defer stop()

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	if err := a.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}
}
