// Package main is the entry point for the instance launch coordinator server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pandeptwidyaop/instance-remote/internal/config"
	"github.com/pandeptwidyaop/instance-remote/internal/database"
	"github.com/pandeptwidyaop/instance-remote/internal/ports"
	"github.com/pandeptwidyaop/instance-remote/internal/router"
	"github.com/pandeptwidyaop/instance-remote/internal/services"
	"github.com/pandeptwidyaop/instance-remote/internal/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		printVersion()
		os.Exit(0)
	}

	configPath := flag.String("config", "config.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Warning: Could not load config from %s: %v", *configPath, err)
		log.Println("Using default configuration...")
		cfg, _ = config.Load("")
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	inspector := &ports.SystemInspector{
		DialFallback: true,
		FallbackLo:   cfg.Launch.RangeLo,
		FallbackHi:   cfg.Launch.RangeHi,
	}
	allocator, err := ports.NewAllocator(inspector, cfg.Launch.RangeLo, cfg.Launch.RangeHi)
	if err != nil {
		log.Fatalf("Invalid launch port range: %v", err)
	}
	if err := allocator.Refresh(); err != nil {
		log.Printf("Warning: initial port snapshot failed: %v", err)
	}

	spawner := &services.ExecSpawner{
		Grace:  cfg.Launch.StartupGrace(),
		UsePTY: cfg.Launch.UsePTY,
	}

	registry := services.NewRegistry()
	history := services.NewHistoryService(db)
	coordinator := services.NewCoordinator(cfg, registry, allocator, spawner, history)

	if cfg.Server.APIToken == "" {
		log.Println("Warning: server.api_token is empty; the API is unauthenticated")
	}

	r := router.New(cfg, coordinator, history)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Instance Remote %s starting on %s", version.Version, addr)

	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func printVersion() {
	fmt.Printf("Instance Remote %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
}
