// Command watchpdfd watches the folders given on the command line, using the
// rest of the settings from the default config file.
package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/ohamelijnck/watchpdf/internal/app"
	"github.com/ohamelijnck/watchpdf/internal/config"
	"github.com/ohamelijnck/watchpdf/internal/daemon"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: watchpdfd <folder>...")
		os.Exit(1)
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	folders, err := normalizeFolders(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	configPath, err := config.DefaultPath()
	if err != nil {
		log.Fatal(err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.WatchFolderList = folders

	p, err := app.Build(cfg, configPath, app.Overrides{})
	if err != nil {
		log.Fatal(err)
	}

	err = daemon.RunDaemon(context.Background(), cfg.WatchFolderList, daemon.Options{Recursive: cfg.Recursive}, p.Service.HandleCreate)
	if err != nil {
		log.Fatal(err)
	}
}
