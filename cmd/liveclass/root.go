package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"liveclass/internal/config"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

type rootOptions struct {
	configFile string
	v          *viper.Viper
}

// loadConfig resolves the server configuration: flags > env > file > defaults
func (o *rootOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.v, o.configFile)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:           "liveclass",
		Short:         "Live classroom session server",
		Long:          "liveclass hosts live teaching sessions: a shared code document, chat, polls, a raised-hand queue and breakout rooms, coordinated over WebSocket.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (TOML, YAML or JSON; default $LIVECLASS_CONFIG_FILE)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newTokenCmd(opts),
		newResumeCmd(),
		newVersionCmd(),
	)
	return rootCmd
}
