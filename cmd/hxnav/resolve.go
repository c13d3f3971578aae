package main

import (
	"fmt"

	"github.com/pthm/hxnav"
	"github.com/spf13/cobra"
)

func newResolveCmd() *cobra.Command {
	var current string
	cmd := &cobra.Command{
		Use:   "resolve <target>",
		Short: "Print the content URL a navigation target resolves to",
		Example: `  hxnav resolve /workorder/list
  hxnav resolve detail.html --current /inspection/list.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if hxnav.HasTraversal(args[0]) {
				return fmt.Errorf("%q: %w", args[0], hxnav.ErrTraversal)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hxnav.Resolve(args[0], current))
			return nil
		},
	}
	cmd.Flags().StringVar(&current, "current", "", "content URL relative targets resolve against")
	return cmd
}
