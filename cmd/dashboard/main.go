// Command dashboard runs the CodeVault dashboard: a server-rendered web UI
// over the CodeVault REST backend.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/codevault/dashboard/internal/config"
	"github.com/codevault/dashboard/internal/web"
)

func main() {
	// A missing .env is fine; explicit env vars and flags still apply.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "dashboard",
		Usage: "server-rendered dashboard for a CodeVault snippet backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file (default: ./config.yaml if present)",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address, overrides config",
			},
			&cli.BoolFlag{
				Name:  "dev",
				Usage: "dev mode: reload templates on change",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Flags win over file and environment.
	if addr := c.String("addr"); addr != "" {
		cfg.Addr = addr
	}
	if c.Bool("dev") {
		cfg.Dev = true
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	srv, err := web.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}
	return srv.Start()
}
