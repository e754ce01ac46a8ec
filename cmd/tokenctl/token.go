package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KeremKalyoncu/grabkit/internal/auth"
	"github.com/KeremKalyoncu/grabkit/internal/store"
)

func (c *cli) tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage admin tokens",
	}
	cmd.AddCommand(c.tokenCreateCmd(), c.tokenListCmd(), c.tokenUpdateCmd(), c.tokenDeleteCmd(), c.tokenResetCmd())
	return cmd
}

func limitText(n int64) string {
	if n == 0 {
		return "unlimited"
	}
	return fmt.Sprint(n)
}

func (c *cli) showToken(cmd *cobra.Command, t *auth.Token) error {
	return c.print(cmd, t, func() {
		c.printf(cmd, "token:   %s\n", t.Token)
		c.printf(cmd, "name:    %s\n", t.Name)
		c.printf(cmd, "daily:   %d / %s\n", t.UsageDaily, limitText(t.DailyLimit))
		c.printf(cmd, "total:   %d / %s\n", t.UsageTotal, limitText(t.TotalLimit))
		c.printf(cmd, "active:  %t\n", t.Active)
	})
}

func (c *cli) tokenCreateCmd() *cobra.Command {
	var spec store.TokenSpec
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if spec.Name == "" {
				return fmt.Errorf("--name is required")
			}
			t, err := c.admin.CreateToken(cmd.Context(), spec)
			if err != nil {
				return fmt.Errorf("creating token: %w", err)
			}
			return c.showToken(cmd, t)
		},
	}
	cmd.Flags().StringVar(&spec.Name, "name", "", "Label for the token")
	cmd.Flags().Int64Var(&spec.DailyLimit, "daily", 100, "Requests per UTC day, 0 for unlimited")
	cmd.Flags().Int64Var(&spec.TotalLimit, "total", 0, "Lifetime requests, 0 for unlimited")
	return cmd
}

func (c *cli) tokenListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List admin tokens with masked values",
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := c.admin.ListTokens(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing tokens: %w", err)
			}
			return c.print(cmd, tokens, func() {
				if len(tokens) == 0 {
					c.printf(cmd, "No tokens found.\n")
					return
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
				fmt.Fprintln(w, "TOKEN\tNAME\tDAILY\tTOTAL\tACTIVE")
				for _, t := range tokens {
					fmt.Fprintf(w, "%s\t%s\t%d/%s\t%d/%s\t%t\n",
						auth.MaskKey(t.Token), t.Name,
						t.UsageDaily, limitText(t.DailyLimit),
						t.UsageTotal, limitText(t.TotalLimit),
						t.Active)
				}
				w.Flush()
			})
		},
	}
}

func (c *cli) tokenUpdateCmd() *cobra.Command {
	var (
		name         string
		daily, total int64
		active       bool
	)
	cmd := &cobra.Command{
		Use:   "update <token>",
		Short: "Change a token's name, limits or active flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u store.TokenUpdate
			flags := cmd.Flags()
			if flags.Changed("name") {
				u.Name = &name
			}
			if flags.Changed("daily") {
				u.DailyLimit = &daily
			}
			if flags.Changed("total") {
				u.TotalLimit = &total
			}
			if flags.Changed("active") {
				u.Active = &active
			}
			if u == (store.TokenUpdate{}) {
				return fmt.Errorf("nothing to update")
			}

			t, err := c.admin.UpdateToken(cmd.Context(), args[0], u)
			if err != nil {
				return fmt.Errorf("updating token: %w", err)
			}
			return c.showToken(cmd, t)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New label")
	cmd.Flags().Int64Var(&daily, "daily", 0, "New daily limit, 0 for unlimited")
	cmd.Flags().Int64Var(&total, "total", 0, "New lifetime limit, 0 for unlimited")
	cmd.Flags().BoolVar(&active, "active", true, "Enable or disable the token")
	return cmd
}

func (c *cli) tokenDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <token>",
		Short: "Delete an admin token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.admin.DeleteToken(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("deleting token: %w", err)
			}
			c.printf(cmd, "Deleted %s\n", auth.MaskKey(args[0]))
			return nil
		},
	}
}

func (c *cli) tokenResetCmd() *cobra.Command {
	var total bool
	cmd := &cobra.Command{
		Use:   "reset <token>",
		Short: "Zero a token's daily usage, or lifetime usage with --total",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.admin.ResetUsage(cmd.Context(), args[0], total); err != nil {
				return fmt.Errorf("resetting usage: %w", err)
			}
			c.printf(cmd, "Usage reset for %s\n", auth.MaskKey(args[0]))
			return nil
		},
	}
	cmd.Flags().BoolVar(&total, "total", false, "Also reset lifetime usage")
	return cmd
}
