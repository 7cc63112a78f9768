// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

// Command lcecho runs the lcepoll echo server and a framed test client.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const Version = "0.1.0"

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "lcecho",
		Short: "echo server on top of lcepoll",
		Long: fmt.Sprintf(`lcecho (v%s)

An echo server built on lcepoll: a master loop accepting TCP connections
and a fixed set of epoll worker loops serving them.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of lcecho",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lcecho v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(clientCmd)
	RootCmd.AddCommand(versionCmd)

	RootCmd.PersistentFlags().String("protocol", "line", "echo protocol (line, frame)")
	RootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
}

// initConfig loads .env files and environment variables.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("lcepoll")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
