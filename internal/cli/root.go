// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jeranaias/retort/internal/config"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	debug      bool
	addr       string
}

// loadConfig loads the config named by --config and applies --addr and
// --debug on top.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	g.apply(cfg)
	return cfg, nil
}

// apply overrides cfg with the flags. It also runs on every hot reload.
func (g *globalFlags) apply(cfg *config.Config) {
	if g.addr != "" {
		cfg.Server.Addr = g.addr
	}
	if g.debug {
		cfg.Logging.Level = "debug"
	}
}

// path returns the config file path in use.
func (g *globalFlags) path() (string, error) {
	if g.configPath != "" {
		return g.configPath, nil
	}
	return config.Path()
}

// NewRootCommand builds the retort command tree.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}
	var headless bool

	root := &cobra.Command{
		Use:   "retort",
		Short: "A floating conversational overlay that argues back",
		Long: `retort shows a small conversational overlay: a listening indicator,
your utterance, and the assistant's streamed rebuttal. Old messages fade
out once six are on screen.

Run without arguments to open the overlay in this terminal. Other
processes drive it through the local HTTP/WebSocket server; the say, push
and state commands are clients of that server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupStyles(cmd.OutOrStdout())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			path, err := g.path()
			if err != nil {
				return err
			}
			if headless {
				return runHeadless(cmd, g, cfg, path)
			}
			return runOverlay(cmd, g, cfg, path)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default ~/.retort/config.toml)")
	pf.BoolVar(&g.debug, "debug", false, "log at debug level")
	pf.StringVar(&g.addr, "addr", "", "server address, overrides server.addr")
	root.Flags().BoolVar(&headless, "headless", false, "run only the server against an in-memory overlay")

	root.AddCommand(
		newSayCommand(g),
		newPushCommand(g),
		newStateCommand(g),
		newConfigCommand(g),
		newVersionCommand(),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:"), err)
		return 1
	}
	return 0
}

func newVersionCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"version":    Version,
					"git_commit": GitCommit,
					"build_date": BuildDate,
					"go_version": runtime.Version(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "retort version %s (%s, built %s, %s)\n",
				Version, GitCommit, BuildDate, runtime.Version())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}
