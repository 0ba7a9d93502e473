// Package main provides the entry point for the Gemini bridge server, an
// OpenAI-compatible API facade over the Gemini cloud-code backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/openbridge-ai/geminibridge/internal/api"
	"github.com/openbridge-ai/geminibridge/internal/auth"
	"github.com/openbridge-ai/geminibridge/internal/config"
	"github.com/openbridge-ai/geminibridge/internal/logging"
	"github.com/openbridge-ai/geminibridge/internal/upstream"
	"github.com/openbridge-ai/geminibridge/internal/watcher"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.Setup()
}

func main() {
	fmt.Printf("geminibridge %s (%s, built %s)\n", Version, Commit, BuildDate)

	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to the configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("failed to load .env file: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logging.ConfigureOutput(cfg)

	manager := auth.NewManager(cfg.Credentials)
	client := upstream.New(manager, upstream.Options{
		BaseURL:   cfg.Upstream.BaseURL,
		UserAgent: cfg.Upstream.UserAgent,
	})
	server := api.NewServer(cfg, client)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return server.Run(ctx) })
	group.Go(func() error {
		w := watcher.New(configPath, func(next *config.Config) {
			server.SetAPIKeys(next.APIKeys)
			manager.SetCredentials(next.Credentials)
		})
		return w.Start(ctx)
	})

	if err = group.Wait(); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
	log.Info("server stopped")
}
