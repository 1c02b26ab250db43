package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "status ID",
		Short: "Show the upload status of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ctx.client()
			id := args[0]
			st, err := c.Status(cmd.Context(), id)
			if wait && err == nil && !st.Status.Terminal() {
				st, err = c.WaitForTerminal(cmd.Context(), id)
			}
			if st != nil {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Status: %s\n", st.Status)
				if st.FinalFileRef != "" {
					fmt.Fprintf(out, "File: %s\n", st.FinalFileRef)
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the recording is ready or failed")
	return cmd
}
