package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"

	"github.com/grovetools/studio/logging"
)

// logLine is one emitted log entry in --json mode.
type logLine struct {
	Component string `json:"component"`
	Line      string `json:"line"`
	Time      string `json:"time"`
}

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs [component]",
		Short: "Display logs from studio components",
		Long: `Streams the log file of a studio component. Defaults to the daemon.

Examples:
  # Follow the daemon log
  studio logs -f

  # Show the CLI component log in JSON Lines format
  studio logs studio-cli --json

  # Print the last part of the daemon log without following
  studio logs`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLogsE,
	}

	cmd.Flags().BoolP("follow", "f", false, "Follow log output")

	return cmd
}

func runLogsE(cmd *cobra.Command, args []string) error {
	component := "studiod"
	if len(args) == 1 {
		component = args[0]
	}

	file := logging.CurrentLogFile(component)
	if _, err := os.Stat(file); err != nil {
		return fmt.Errorf("no log file for component %q at %s", component, file)
	}

	follow, _ := cmd.Flags().GetBool("follow")
	jsonOut, _ := cmd.Flags().GetBool("json")

	t, err := tail.TailFile(file, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail %s: %w", file, err)
	}
	defer t.Cleanup()

	enc := json.NewEncoder(os.Stdout)
	for line := range t.Lines {
		if line.Err != nil {
			return line.Err
		}
		if jsonOut {
			_ = enc.Encode(logLine{
				Component: component,
				Line:      line.Text,
				Time:      line.Time.Format(time.RFC3339),
			})
		} else {
			fmt.Println(line.Text)
		}
	}
	return nil
}
