package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

func newBrowseCmd(opts *rootOptions) *cobra.Command {
	var sessionFile string
	cmd := &cobra.Command{
		Use:   "browse [visible-url]",
		Short: "Browse a CMMS server interactively",
		Long: `Mounts the layout page and shows the content slot as markdown with a
numbered list of links, row links, actions and forms. Type a number to
activate one, or help for the other commands.

With --session and a session_key in the config, history is saved on exit
and resumed on the next run.`,
		Example: `  hxnav browse --base-url http://localhost:8080
  hxnav browse "/layout?content=%2Fworkorder%2Flist" --session .hxnav-session`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			visible := ""
			if len(args) == 1 {
				visible = args[0]
			}

			s, err := newSession(cfg, opts.logger(cmd.ErrOrStderr()), cmd.OutOrStdout(), promptConfirmer{}, sessionFile)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := s.Close(); cerr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "browse: %v\n", cerr)
				}
			}()

			if err := s.start(cmd.Context(), visible); err != nil {
				return err
			}
			return repl(cmd.Context(), s)
		},
	}
	cmd.Flags().StringVar(&sessionFile, "session", "", "file to save and resume history from")
	return cmd
}

func repl(ctx context.Context, s *session) error {
	s.render()
	for {
		prompt := promptui.Prompt{Label: "hxnav"}
		line, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			return err
		}
		quit, err := s.exec(ctx, line)
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// promptConfirmer asks yes/no questions on the terminal.
type promptConfirmer struct{}

func (promptConfirmer) Confirm(message string) bool {
	prompt := promptui.Prompt{Label: message, IsConfirm: true}
	_, err := prompt.Run()
	return err == nil
}
