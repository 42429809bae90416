package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	flagConfig   string
	flagLogLevel string
	log          zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lspsim",
	Short: "Simulate markets for last-slot proposer bribes",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		lvl, err := zerolog.ParseLevel(strings.ToLower(flagLogLevel))
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		log = log.Level(lvl)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "",
		"path to the simulation config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "loglevel", "info",
		"log level (panic, fatal, error, warn, info, debug)")

	log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(recordsCmd)

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())

	if flagConfig == "" {
		return
	}
	viper.SetConfigFile(flagConfig)
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal().Err(err).Str("config", flagConfig).Msg("could not read config file")
	}
}
