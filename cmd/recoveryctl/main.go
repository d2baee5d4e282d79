package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "recoveryctl",
	Short: "Cart recovery CLI",
	Long:  `A CLI tool to operate the abandoned-cart recovery service.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.recoveryctl.yaml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".recoveryctl")
	}

	viper.SetDefault("service_url", "http://localhost:8080")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		// Config file found; env vars still take precedence.
	}
}

func main() {
	Execute()
}
