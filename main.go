package main

import (
	"github.com/joho/godotenv"

	"memorypal/keeper/cmd"
)

func main() {
	// Optional .env with API keys; missing file is fine.
	_ = godotenv.Load()
	cmd.Execute()
}
