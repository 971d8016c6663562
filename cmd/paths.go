package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/studio/pkg/paths"
)

// PathsOutput represents the XDG-compliant paths used by Studio.
type PathsOutput struct {
	ConfigDir string `json:"config_dir"`
	DataDir   string `json:"data_dir"`
	StateDir  string `json:"state_dir"`
	CacheDir  string `json:"cache_dir"`
	LogDir    string `json:"log_dir"`
	Database  string `json:"database"`
	Socket    string `json:"socket"`
}

func NewPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the XDG-compliant paths used by Studio",
		Long: `Print the XDG-compliant paths used by Studio in JSON format.

- config_dir: Configuration files (studio.yml)
- data_dir: Persistent data (sqlite database)
- state_dir: Runtime state and logs
- cache_dir: Temporary/regenerable data`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := PathsOutput{
				ConfigDir: paths.ConfigDir(),
				DataDir:   paths.DataDir(),
				StateDir:  paths.StateDir(),
				CacheDir:  paths.CacheDir(),
				LogDir:    paths.LogDir(),
				Database:  paths.DatabasePath(),
				Socket:    paths.SocketPath(),
			}

			jsonData, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal paths to JSON: %w", err)
			}
			fmt.Println(string(jsonData))
			return nil
		},
	}
}
