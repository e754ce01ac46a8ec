package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/KeremKalyoncu/grabkit/internal/auth"
)

func (c *cli) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage credit-holding users and their service keys",
	}
	cmd.AddCommand(c.userCreateCmd(), c.userShowCmd(), c.userCreditsCmd(), c.userKeyCmd(),
		c.userBanCmd(true), c.userBanCmd(false))
	return cmd
}

func (c *cli) showUser(cmd *cobra.Command, u *auth.User) error {
	return c.print(cmd, u, func() {
		c.printf(cmd, "id:       %s\n", u.ID)
		c.printf(cmd, "name:     %s\n", u.Name)
		c.printf(cmd, "email:    %s\n", u.Email)
		c.printf(cmd, "credits:  %d\n", u.Credits)
		c.printf(cmd, "requests: %d\n", u.TotalRequests)
		c.printf(cmd, "banned:   %t\n", u.Banned)

		services := make([]string, 0, len(u.APIKeys))
		for s := range u.APIKeys {
			services = append(services, s)
		}
		sort.Strings(services)
		for _, s := range services {
			c.printf(cmd, "key[%s]: %s\n", s, auth.MaskKey(u.APIKeys[s]))
		}
	})
}

func (c *cli) userCreateCmd() *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user with the configured free credits",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			u, err := c.admin.CreateUser(cmd.Context(), name, email)
			if err != nil {
				return fmt.Errorf("creating user: %w", err)
			}
			return c.showUser(cmd, u)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Unique email address")
	return cmd
}

func (c *cli) userShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := c.admin.GetUser(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("loading user: %w", err)
			}
			return c.showUser(cmd, u)
		},
	}
}

func (c *cli) userCreditsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "credits <id> <amount>",
		Short: "Add credits to a user; a negative amount removes them",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			balance, err := c.admin.AddCredits(cmd.Context(), args[0], n)
			if err != nil {
				return fmt.Errorf("adding credits: %w", err)
			}
			return c.print(cmd, map[string]int64{"credits": balance}, func() {
				c.printf(cmd, "Balance: %d\n", balance)
			})
		},
	}
}

func (c *cli) userKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key <id> <service>",
		Short: "Issue a new service key, replacing the previous one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !auth.ValidService(args[1]) {
				return fmt.Errorf("unknown service %q, expected one of %v", args[1], auth.Services)
			}
			key, err := c.admin.IssueServiceKey(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("issuing key: %w", err)
			}
			return c.print(cmd, map[string]string{"service": args[1], "key": key}, func() {
				c.printf(cmd, "%s\n", key)
			})
		},
	}
}

func (c *cli) userBanCmd(banned bool) *cobra.Command {
	use, short := "ban <id>", "Suspend a user"
	if !banned {
		use, short = "unban <id>", "Lift a user's suspension"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.admin.SetBanned(cmd.Context(), args[0], banned); err != nil {
				return fmt.Errorf("updating user: %w", err)
			}
			c.printf(cmd, "User %s banned=%t\n", args[0], banned)
			return nil
		},
	}
}
