package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/N9work/CrewAi-Project/config"
)

func main() {
	var cfgPath string
	var root = &cobra.Command{
		Use:           "tripcrew",
		Short:         "Thai trip package planner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/config.json)")

	root.AddCommand(serveCMD(&cfgPath), planCMD(&cfgPath), catalogCMD(&cfgPath), tokenCMD(&cfgPath))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newLogger builds a production logger, or a development one in debug mode.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.General.Debug {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	if cfg.General.LogLevel != "" {
		lvl, err := zapcore.ParseLevel(cfg.General.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("general.log_level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zc.Build()
}

func loadWithLogger(path string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
