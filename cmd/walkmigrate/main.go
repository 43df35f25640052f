package main

import (
	"context"
	"log"

	"github.com/walktrack/backend/internal/app"
)

func main() {
	if err := app.NewLegacyMigrateCommand().ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
