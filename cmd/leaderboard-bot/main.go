// Package main is the entry point for the leaderboard bot.
package main

import (
	"os"

	"github.com/Black-And-White-Club/discord-leaderboard-bot/cmd/leaderboard-bot/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
