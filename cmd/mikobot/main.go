// Package main is the entry point for the mikobot CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mikobot/pkg/config"
	"mikobot/pkg/version"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mikobot",
	Short: "mikobot - a multi-platform chat command bot",
	Long: `mikobot is a multi-platform chat bot serving a shared command set
on Telegram, Discord and Slack, with per-user rate limiting, role-based
access control and concurrency-safe command execution.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetFullVersion())
	},
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "mikobot.json"
		if len(args) > 0 {
			path = args[0]
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote default configuration to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
