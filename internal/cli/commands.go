// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/retort/internal/config"
	"github.com/jeranaias/retort/internal/overlay"
	"github.com/jeranaias/retort/internal/server"
	"github.com/jeranaias/retort/internal/util"
)

// =============================================================================
// CLIENT COMMANDS
// =============================================================================

func newSayCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "say <text>",
		Short: "Send an utterance to the assistant",
		Long: `Shows the text as your message and streams the assistant's reply
into the overlay. Requires llm.api_key (or DASHSCOPE_API_KEY).`,
		Example: `  retort say "tea is better than coffee"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" {
				return errors.New("nothing to say")
			}
			c := newAPIClient(cfg.Server)
			if err := c.do(cmd.Context(), http.MethodPost, "/v1/utterances", server.TextRequest{Text: text}, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("sent"))
			return nil
		},
	}
}

func newPushCommand(g *globalFlags) *cobra.Command {
	var role string
	var stream bool

	cmd := &cobra.Command{
		Use:   "push [text]",
		Short: "Dispatch a message to the overlay by role",
		Long: `Routes text by role: "user" shows a user message, "ai" or "assistant"
shows a complete assistant reply, "status" shows the listening indicator
when the text is a listening marker.

With --stream, stdin is sent line by line as one assistant stream over
the WebSocket transport.`,
		Example: `  retort push --role user "hello"
  retort push --role ai "no."
  some-llm | retort push --stream`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			c := newAPIClient(cfg.Server)
			if stream {
				return pushStream(cmd, c, cmd.InOrStdin())
			}
			if len(args) == 0 {
				return errors.New("text is required unless --stream is set")
			}

			var res server.OpResponse
			req := server.DispatchRequest{Role: role, Text: strings.Join(args, " ")}
			if err := c.do(cmd.Context(), http.MethodPost, "/v1/dispatch", req, &res); err != nil {
				return err
			}
			status := SuccessStyle.Render("applied")
			if !res.Applied {
				status = DimStyle.Render("ignored")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", status, DimStyle.Render(res.State.String()))
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "user", "message role: user, ai, assistant or status")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream stdin as one assistant reply")
	return cmd
}

// pushStream sends stdin as begin, one chunk per line, end.
func pushStream(cmd *cobra.Command, c *apiClient, in io.Reader) error {
	lines := 0
	err := c.stream(cmd.Context(), func(send func(server.Frame) error) error {
		if err := send(server.Frame{Op: overlay.OpBeginStream.String()}); err != nil {
			return err
		}
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			text := sc.Text()
			if lines > 0 {
				text = "\n" + text
			}
			if err := send(server.Frame{Op: overlay.OpAppendChunk.String(), Text: text}); err != nil {
				return err
			}
			lines++
		}
		// End even on a read error so the bubble does not stay open.
		endErr := send(server.Frame{Op: overlay.OpEndStream.String()})
		if err := sc.Err(); err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		return endErr
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d lines\n", SuccessStyle.Render("streamed"), lines)
	return nil
}

func newStateCommand(g *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print what the overlay is showing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			var snap overlay.Snapshot
			if err := newAPIClient(cfg.Server).do(cmd.Context(), http.MethodGet, "/v1/state", nil, &snap); err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), snap)
			}
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func printSnapshot(w io.Writer, snap overlay.Snapshot) {
	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}
	fmt.Fprintln(w, LabelStyle.Render("State")+TitleStyle.Render(snap.State.String()))
	fmt.Fprintln(w, LabelStyle.Render("Listening")+yesNo(snap.Listening))
	fmt.Fprintln(w, LabelStyle.Render("Streaming")+yesNo(snap.Streaming))
	fmt.Fprintln(w, LabelStyle.Render("Relisten")+yesNo(snap.RelistenPending))
	fmt.Fprintln(w, LabelStyle.Render("Bubbles")+fmt.Sprint(len(snap.Bubbles)))

	for _, b := range snap.Bubbles {
		role := string(b.Role)
		style, ok := RoleStyles[role]
		if !ok {
			style = DimStyle
		}
		text := util.TruncateWidth(strings.ReplaceAll(b.DisplayText(), "\n", " "), 60)
		if b.Animating {
			text = DimStyle.Render(text + " (leaving)")
		}
		fmt.Fprintf(w, "  %s %s\n", style.Width(10).Render(b.Role.DisplayName()), text)
	}
}

// =============================================================================
// CONFIG COMMANDS
// =============================================================================

func newConfigCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the configuration file",
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := g.path()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := g.path()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("wrote"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	getCmd := &cobra.Command{
		Use:       "get <key>",
		Short:     "Print one setting, e.g. server.addr",
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			if list, ok := v.([]string); ok {
				v = strings.Join(list, ",")
			}
			if args[0] == "llm.api_key" || args[0] == "server.token" {
				if s, _ := v.(string); s != "" {
					v = "[REDACTED]"
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting in the config file",
		Long: `Writes one setting to the config file. Environment overrides are not
persisted. A running overlay picks up logging.level and
overlay.font_size without a restart.`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: config.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := g.path()
			if err != nil {
				return err
			}
			cfg := config.Default()
			if _, err := os.Stat(path); err == nil {
				if err := config.LoadTOML(cfg, path); err != nil {
					return err
				}
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", SuccessStyle.Render("set"), args[0])
			return nil
		},
	}

	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "List every settable key",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, k := range config.Keys() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
		},
	}

	cmd.AddCommand(pathCmd, showCmd, initCmd, getCmd, setCmd, keysCmd)
	return cmd
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
