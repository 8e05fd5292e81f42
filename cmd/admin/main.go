package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// Operator CLI for a running keep: state/snapshot/mint/burn/grant/config
// talk to the loopback admin endpoints; db queries the sqlite index directly.
func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "mint":
			mintCmd(os.Args[2:])
			return
		case "burn":
			burnCmd(os.Args[2:])
			return
		case "grant":
			grantCmd(os.Args[2:])
			return
		case "config":
			configCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	keepID := fs.String("keep", "", "keep id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "keeps")
	if *keepID != "" {
		base = filepath.Join(base, *keepID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}
