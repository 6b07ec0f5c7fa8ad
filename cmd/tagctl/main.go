// tagctl is a minimal read-only operations surface for a pool of PLC
// gateways: health, per-gateway status, and single-tag reads over HTTP,
// plus two admin-guarded actions (force-reconnect, clear cache) for an
// operator who doesn't want to reach for a terminal.
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/crypto/bcrypt"

	"github.com/yatesdr/ablink/config"
)

var (
	configPath = flag.String("config", "pool.yaml", "path to the gateway pool configuration file")
	listenAddr = flag.String("listen", ":8099", "HTTP listen address")
	adminUser  = flag.String("admin-user", "", "username for the admin-guarded routes (reconnect/clear-cache); leave unset to disable them")
	adminPass  = flag.String("admin-pass", "", "password for -admin-user")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tagctl: loading %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	if err := config.ApplyTelemetry(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "tagctl: telemetry: %v\n", err)
		os.Exit(1)
	}
	if err := config.ApplyReadCaches(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "tagctl: read cache: %v\n", err)
		os.Exit(1)
	}

	var admin *adminCreds
	if *adminUser != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*adminPass), bcrypt.DefaultCost)
		if err != nil {
			fmt.Fprintf(os.Stderr, "tagctl: hashing admin password: %v\n", err)
			os.Exit(1)
		}
		admin = &adminCreds{username: *adminUser, passwordHash: string(hash)}
	}

	sessionSecret := make([]byte, 32)
	if _, err := rand.Read(sessionSecret); err != nil {
		fmt.Fprintf(os.Stderr, "tagctl: generating session secret: %v\n", err)
		os.Exit(1)
	}

	srv := newServer(cfg, admin, sessionSecret)
	if err := srv.Start(*listenAddr); err != nil {
		fmt.Fprintf(os.Stderr, "tagctl: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("tagctl listening on %s (%d gateway(s) configured)\n", *listenAddr, len(cfg.Gateways))
	if admin == nil {
		fmt.Println("admin routes disabled (no -admin-user given)")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	fmt.Println("shutting down")
	_ = srv.Stop()
}
