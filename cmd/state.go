package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/grovetools/studio/internal/action"
)

// NewStateCmd creates the `state` command.
func NewStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the daemon's current state tree as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := daemonGet("/api/state")
			if err != nil {
				return err
			}
			var indented bytes.Buffer
			if err := json.Indent(&indented, body, "", "  "); err != nil {
				fmt.Println(string(body))
				return nil
			}
			fmt.Println(indented.String())
			return nil
		},
	}
}

// NewDispatchCmd creates the `dispatch` command, which sends a raw action
// envelope to the daemon. Mostly useful for scripting and debugging.
func NewDispatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch <type> [payload-json]",
		Short: "Dispatch an action envelope to the daemon",
		Long: `Sends one action to the daemon and reports the outcome.

Examples:
  studio dispatch OpenProject '{"path": "/home/me/proj"}'
  studio dispatch SetActiveView '{"view": "chat"}'
  studio dispatch ClearChat`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := action.Envelope{Type: args[0]}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &env.Payload); err != nil {
					return fmt.Errorf("payload is not valid JSON: %w", err)
				}
			}

			body, err := json.Marshal(env)
			if err != nil {
				return err
			}
			resp, err := socketClient().Post("http://unix/api/dispatch", "application/json", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("daemon not reachable (is it running? try 'studio daemon start'): %w", err)
			}
			defer resp.Body.Close()

			var reply bytes.Buffer
			if _, err := reply.ReadFrom(resp.Body); err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				fmt.Fprintln(os.Stderr, reply.String())
				return fmt.Errorf("dispatch rejected (%s)", resp.Status)
			}
			fmt.Println(reply.String())
			return nil
		},
	}
	return cmd
}
