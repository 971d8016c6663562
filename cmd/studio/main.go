package main

import (
	"os"

	"github.com/grovetools/studio/cli"
	"github.com/grovetools/studio/cmd"
)

func main() {
	rootCmd := cli.NewStandardCommand(
		"studio",
		"Multi-project development studio daemon and tools",
	)

	rootCmd.AddCommand(cmd.NewDaemonCmd())
	rootCmd.AddCommand(cmd.NewStateCmd())
	rootCmd.AddCommand(cmd.NewDispatchCmd())
	rootCmd.AddCommand(cmd.NewLogsCmd())
	rootCmd.AddCommand(cmd.NewConfigCmd())
	rootCmd.AddCommand(cmd.NewPathsCmd())
	rootCmd.AddCommand(cmd.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
