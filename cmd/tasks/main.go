package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"

	"github.com/idilsaglam/tasklist/internal/app"
	"github.com/idilsaglam/tasklist/internal/cli"
	"github.com/idilsaglam/tasklist/internal/config"
	"github.com/idilsaglam/tasklist/internal/events"
	"github.com/idilsaglam/tasklist/internal/tui"
	"github.com/idilsaglam/tasklist/internal/ui"
)

func main() {
	// Root flags (apply to every subcommand)
	configPath := flag.String("config", os.Getenv("TASKS_CONFIG"), "path to a YAML config file")
	backend := flag.String("backend", "", "storage backend: file, memory, redis or badger")
	path := flag.String("path", "", "data file (file backend) or directory (badger backend)")
	theme := flag.String("theme", "", "color theme: classic, neon or mono")
	groupPending := flag.Bool("group", false, "group output by pending/done")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	cfg, err := config.Load(*configPath, os.Getenv)
	if err != nil {
		ui.Fail(os.Stderr, "config: "+err.Error())
		os.Exit(2)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = *backend
		case "path":
			cfg.Path = *path
		case "theme":
			cfg.Theme = *theme
		case "group":
			cfg.Group = *groupPending
		case "debug":
			cfg.Debug = *debug
		}
	})

	// Hand the remaining args to the CLI runner.
	args := flag.Args()
	if len(args) == 0 {
		cli.PrintHelp(os.Stdout)
		os.Exit(2)
	}
	os.Exit(run(cfg, args))
}

func run(cfg config.Config, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ui.SetTheme(cfg.Theme)
	logger := log.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(log.WarnLevel)

	a, err := app.New(ctx, cfg, logger, func(bus *events.Bus) {
		bus.Subscribe(events.KindStorageUnavailable, func(e events.Event) {
			ui.Warn(os.Stderr, events.Describe(e))
		})
	})
	if err != nil {
		ui.Fail(os.Stderr, err.Error())
		return 2
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		ui.Fail(os.Stderr, "load: "+err.Error())
		return 1
	}

	code := cli.Run(ctx, args, cli.Options{
		Group:   cfg.Group,
		Manager: a.Manager,
		Interactive: func(ctx context.Context) error {
			return tui.Run(ctx, a.Manager, a.Durable())
		},
	})
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	return code
}
