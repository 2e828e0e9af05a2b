package main

import (
	"context"
	"log"
	"os"
	"slices"

	"github.com/dmitrijs2005/cinecritic/internal/server/config"
	"github.com/dmitrijs2005/cinecritic/internal/useradmin"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	// the command is the first argument naming one; everything after it
	// belongs to the command
	args := os.Args[1:]
	idx := slices.IndexFunc(args, func(a string) bool { return slices.Contains(useradmin.Commands, a) })
	if idx < 0 {
		log.Fatal(useradmin.ErrUsage)
	}

	app, db, err := useradmin.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	err = app.Run(ctx, args[idx:])
	_ = db.Close()
	if err != nil {
		log.Fatalf("%v", err)
	}

}
