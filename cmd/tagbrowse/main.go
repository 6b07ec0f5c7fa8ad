// tagbrowse is a terminal browser for a pool of PLC gateways: a table of
// configured gateways and their live connection state, and a panel to
// read an arbitrary tag from the selected one by name.
package main

import (
	"fmt"
	"os"

	"github.com/yatesdr/ablink/config"
)

func main() {
	configPath := "pool.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tagbrowse: loading %s: %v\n", configPath, err)
		os.Exit(1)
	}

	if err := config.ApplyReadCaches(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "tagbrowse: read cache: %v\n", err)
		os.Exit(1)
	}

	app := newApp(cfg)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tagbrowse: %v\n", err)
		os.Exit(1)
	}
}
