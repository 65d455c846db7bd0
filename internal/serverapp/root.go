// Package serverapp is the cobra/viper process entrypoint for the
// genome-browser request-pipeline backend: a cobra root command,
// viper-driven config (flags, env, and a TOML file), and logrus for
// process-wide structured logging.
package serverapp

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "genoverse-backend",
	Short: "genoverse-backend - the genome-browser request-pipeline backend",
	Long: `genoverse-backend serves a batched binary packet protocol: a single
POST endpoint decodes a packet of sub-commands, dispatches each to its
handler (boot, program, stick, data, jump, metric, expansion), and
replies with the re-encoded packet.

Configuration is read from $HOME/.genoverse-backend.toml, environment
variables prefixed GENOVERSE_, and command-line flags, in that priority
order.`,
}

// Execute runs the root command, exiting the process on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.genoverse-backend.toml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".genoverse-backend")
		viper.SetConfigType("toml")
	}

	viper.SetEnvPrefix("genoverse")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logrus.WithField("file", viper.ConfigFileUsed()).Info("serverapp: using config file")
	}
}
