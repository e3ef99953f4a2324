package main

import (
	"github.com/joho/godotenv"

	"github.com/pfrederiksen/labordata/internal/cli"
)

func main() {
	// Pick up API keys and Twitter credentials from .env when present.
	_ = godotenv.Load()

	cli.Execute()
}
