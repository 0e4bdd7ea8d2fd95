// Command aetherdesk is the wallpaper daemon. It owns the active wallpaper,
// runs the schedule and serves the local control API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dixieflatline76/AetherDesk/config"
	"github.com/dixieflatline76/AetherDesk/util"
	"github.com/dixieflatline76/AetherDesk/util/log"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to the configuration file")
		debug       = flag.Bool("debug", false, "enable debug logging")
		version     = flag.Bool("version", false, "print the version and exit")
		checkUpdate = flag.Bool("check-update", false, "check for a newer release and exit")
		apply       = flag.String("apply", "", "wallpaper to apply at startup, as type:path or a path")
	)
	flag.Parse()

	if *version {
		fmt.Println(config.AppName, config.AppVersion)
		return
	}
	if *checkUpdate {
		os.Exit(runUpdateCheck())
	}
	log.SetDebug(*debug || config.DebugFromEnv())

	ok, err := acquireLock()
	if err != nil {
		log.Fatalf("Failed to acquire single-instance lock: %v", err)
	}
	if !ok {
		fmt.Printf("Another instance of %s is already running.\n", config.AppName)
		os.Exit(1)
	}

	err = run(*configPath, *apply)
	releaseLock()
	if err != nil {
		log.Printf("%s exited: %v", config.AppName, err)
		os.Exit(1)
	}
}

func runUpdateCheck() int {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	res, err := util.CheckForUpdates(ctx, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Update check failed: %v\n", err)
		return 1
	}
	if res.UpdateAvailable {
		fmt.Printf("%s %s is available (running %s): %s\n", config.AppName, res.LatestVersion, res.CurrentVersion, res.ReleaseURL)
	} else {
		fmt.Printf("%s %s is up to date.\n", config.AppName, res.CurrentVersion)
	}
	return 0
}
