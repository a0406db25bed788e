package main

import (
	"log"

	"github.com/MrSnakeDoc/roomrouter/internal/app"
)

func main() {
	if err := app.NewRouter().Run(); err != nil {
		log.Fatalf("❌ roomrouter failed to start: %v", err)
	}
}
