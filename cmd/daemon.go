package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/studio/cli"
	"github.com/grovetools/studio/config"
	"github.com/grovetools/studio/internal/effects"
	"github.com/grovetools/studio/internal/persist"
	"github.com/grovetools/studio/internal/pidfile"
	"github.com/grovetools/studio/internal/server"
	"github.com/grovetools/studio/internal/store"
	"github.com/grovetools/studio/logging"
	"github.com/grovetools/studio/pkg/paths"
	"github.com/grovetools/studio/util/pathutil"
)

// NewDaemonCmd returns the studiod daemon command with subcommands.
func NewDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Studio state daemon",
		Long:  "Centralized state engine daemon for studio clients.",
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		Long:  "Start the studio daemon in foreground mode.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger("studiod")
			pidPath := paths.PidFilePath()

			if err := pidfile.Acquire(pidPath); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			defer func() {
				if err := pidfile.Release(pidPath); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			configFile, err := cli.InitConfig(cli.GetOptions(cmd).ConfigFile)
			if err != nil {
				return err
			}
			var cfg *config.Config
			if configFile != "" {
				if cfg, err = config.Load(configFile); err != nil {
					return err
				}
			} else {
				cfg = &config.Config{}
			}

			// Config may relocate the socket and database and retune the
			// snapshot throttle.
			sockPath := paths.SocketPath()
			dbPath := paths.DatabasePath()
			snapshotInterval := 2 * time.Second
			if cfg.Daemon != nil {
				if cfg.Daemon.SocketPath != "" {
					if sockPath, err = pathutil.Expand(cfg.Daemon.SocketPath); err != nil {
						return fmt.Errorf("invalid socket_path: %w", err)
					}
				}
				if cfg.Daemon.DatabasePath != "" {
					if dbPath, err = pathutil.Expand(cfg.Daemon.DatabasePath); err != nil {
						return fmt.Errorf("invalid database_path: %w", err)
					}
				}
				if cfg.Daemon.SnapshotInterval != "" {
					if snapshotInterval, err = time.ParseDuration(cfg.Daemon.SnapshotInterval); err != nil {
						return fmt.Errorf("invalid snapshot_interval: %w", err)
					}
				}
			}

			db, err := persist.Open(cmd.Context(), dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			// Empty means the registry falls back to $SHELL.
			var shell string
			if cfg.Terminal != nil {
				shell = cfg.Terminal.Shell
			}

			chatCfg := cfg.ChatOrDefault()
			var client effects.CompletionClient
			if os.Getenv(chatCfg.APIKeyEnv) == "" {
				logger.Warnf("%s not set, chat completions disabled", chatCfg.APIKeyEnv)
			} else {
				client = effects.NewAnthropicClient(chatCfg)
			}

			st, err := store.New(store.Options{
				Persist:          db,
				Client:           client,
				IgnorePatterns:   cfg.IgnorePatternsOrDefault(),
				Shell:            shell,
				SnapshotInterval: snapshotInterval,
				Logger:           logger,
			})
			if err != nil {
				return fmt.Errorf("failed to start store: %w", err)
			}
			defer st.Close()

			srv := server.New(st, logger)
			srv.SetRunningConfig(&server.RunningConfig{
				ConfigFile:       configFile,
				Shell:            shell,
				SnapshotInterval: snapshotInterval,
				StartedAt:        time.Now(),
			})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			watcher, err := server.NewConfigWatcher(100*time.Millisecond, nil, st.BroadcastConfigReload)
			if err != nil {
				logger.WithError(err).Warn("Config watcher disabled")
			} else {
				go watcher.Start(ctx)
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			go func() {
				<-stop
				logger.Info("Received stop signal")
				cancel()

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Errorf("Server shutdown error: %v", err)
				}

				st.Close()
				_ = db.Close()
				_ = pidfile.Release(pidPath)
				os.Exit(0)
			}()

			logger.WithField("pid", os.Getpid()).Info("Starting daemon")
			if err := srv.ListenAndServe(sockPath); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()

			running, pid, err := pidfile.IsRunning(pidPath)
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}

			if !running {
				fmt.Println("Daemon is not running")
				return nil
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process %d: %w", pid, err)
			}

			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}

			fmt.Printf("Sent SIGTERM to process %d\n", pid)
			return nil
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			pidPath := paths.PidFilePath()
			running, pid, err := pidfile.IsRunning(pidPath)

			if err != nil {
				return fmt.Errorf("error: %w", err)
			}

			if running {
				fmt.Printf("Running (PID: %d)\nSocket: %s\n", pid, paths.SocketPath())
			} else {
				fmt.Println("Stopped")
				os.Exit(1) // Non-zero for stopped state, useful for scripts
			}
			return nil
		},
	}
}
