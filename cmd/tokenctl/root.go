package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KeremKalyoncu/grabkit/internal/store"
)

// opener returns the admin store and a release func
type opener func(ctx context.Context) (store.Admin, func(), error)

type cli struct {
	open  opener
	admin store.Admin
	close func()
	json  bool
}

func newRootCmd(open opener) *cobra.Command {
	c := &cli{open: open}

	root := &cobra.Command{
		Use:           "tokenctl",
		Short:         "Manage grabkit admin tokens and users",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			admin, release, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			c.admin, c.close = admin, release
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.close != nil {
				c.close()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&c.json, "json", "j", false, "Print results as JSON")

	root.AddCommand(c.tokenCmd(), c.userCmd())
	return root
}

// print writes v as JSON with --json, else calls text
func (c *cli) print(cmd *cobra.Command, v interface{}, text func()) error {
	if c.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}

func (c *cli) printf(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
