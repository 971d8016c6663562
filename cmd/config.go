package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/studio/cli"
	"github.com/grovetools/studio/config"
)

// NewConfigCmd creates the `config` command: shows and validates the
// effective configuration for the current context.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Display the effective configuration",
		Long: `Resolves the studio configuration the same way the daemon would
(--config flag, then nearest studio.yml walking up, then the XDG config
dir), validates it against the config schema, and prints it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.GetOptions(cmd)
			path, err := cli.InitConfig(opts.ConfigFile)
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Fprintln(os.Stderr, "No config file found; defaults apply.")
				return nil
			}

			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			fmt.Printf("# Source: %s\n", path)
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
	return cmd
}
