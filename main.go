package main

import (
	"log"

	"github.com/joho/godotenv"

	"storyboard-studio/internal/bootstrap"
)

func main() {
	// Optional .env holding GEMINI_API_KEY; absence is not an error.
	_ = godotenv.Load()

	app, err := bootstrap.New()
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}
