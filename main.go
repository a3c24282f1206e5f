package main

import (
	"log"

	"yashubustudio/simmatch/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("simmatch: %v", err)
	}
}
