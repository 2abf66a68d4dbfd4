package main

import (
	"os"

	"github.com/gdtech/hackathon/cmd/hackathon/commands"
)

// main is the entry point for the hackathon CLI
// ⭐ 统一 CLI 入口: go run ./cmd/hackathon [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
