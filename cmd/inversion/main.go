// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/inversion_meter/internal/app"
	"github.com/relabs-tech/inversion_meter/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "inversion",
	Short: "Inversion table angle meter",
	Long:  `Measures the tilt of an inversion table, times inversion sessions and keeps their peak angle.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.InitGlobal(configPath)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "inversion_config.txt", "path to the KEY=VALUE config file")

	rootCmd.AddCommand(
		runCommand("meter", "Run the session meter, its MQTT topics and the web server", app.RunMeter),
		runCommand("producer", "Publish tilt readings from the local sensor over MQTT", app.RunTiltProducer),
		runCommand("console", "Terminal UI for a running meter", app.RunConsole),
		runCommand("display", "Mirror the meter state onto the SSD1306 OLED", app.RunDisplay),
	)
}

func runCommand(use, short string, run func(context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx)
		},
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
