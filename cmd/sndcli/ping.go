package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server accepts this client version",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()

			v, err := c.Ping(opts.version)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server %s accepts client %s\n", v, opts.version)
			return nil
		},
	}
}
