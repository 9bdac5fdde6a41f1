package infostorecmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.lumeweb.com/infostore/config"
	"go.lumeweb.com/infostore/core"
	"go.lumeweb.com/infostore/infostore"
	"go.uber.org/zap"
)

func Main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := flag.NewFlagSet("infostore", flag.ContinueOnError)
	configFile := flags.String("config", "", "path to the config file")
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "usage: infostore [-config path] <%s>\n", commandUsage())
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return core.ExitCodeUsage
	}

	cmd, err := parseCommand(flags.Args())
	if err != nil {
		fmt.Fprintln(flags.Output(), err)
		flags.Usage()
		return core.ExitCodeUsage
	}

	cfg, err := config.NewManager(*configFile)
	if err != nil {
		core.NewLogger(nil).Error("Failed to load config", zap.Error(err))
		return core.ExitCodeFailedStartup
	}

	logger := core.NewLogger(cfg)

	err = cfg.Init()
	if err != nil {
		logger.Error("Failed to initialize config", zap.Error(err))
		return core.ExitCodeFailedStartup
	}

	logger.SetLevelFromConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := trapSignals(cancel, logger)
	defer stop()

	store, err := infostore.New(ctx, cfg.Config().Core.Store, logger)
	if err != nil {
		logger.Error("Failed to create info storage", zap.Error(err))
		return core.ExitCodeFailedStartup
	}

	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close info storage", zap.Error(err))
		}
	}()

	if err := cmd.run(ctx, store, os.Stdout, logger); err != nil {
		logger.Error("Command failed", zap.String("command", cmd.name), zap.Error(err))
		return core.ExitCodeFailedCommand
	}

	return core.ExitCodeSuccess
}
