package main

import (
	"embed"
	"fmt"
	"os"

	"github.com/zurustar/mission-vm/pkg/app"
)

//go:embed missions
var embeddedMissions embed.FS

func main() {
	application := app.New(embeddedMissions)
	if err := application.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
