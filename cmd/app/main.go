package main

import (
	"context"
	"log/slog"
	"os"
	_ "time/tzdata"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
