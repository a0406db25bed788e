package main

import (
	"log"

	"github.com/MrSnakeDoc/roomrouter/internal/app"
)

func main() {
	if err := app.NewShard().Run(); err != nil {
		log.Fatalf("❌ roomshard failed to start: %v", err)
	}
}
