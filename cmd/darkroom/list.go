// ABOUTME: Read-only listing commands for accounts and stored settings
// ABOUTME: Both open the database directly and print a tab-aligned table

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List admin and editor accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			users, err := s.ListAdminUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing users: %w", err)
			}
			if len(users) == 0 {
				color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "No users yet. Run 'darkroom bootstrap' first.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "USERNAME\tROLE\tCREATED")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\n", u.Username, u.Role, u.CreatedAt.Format(time.DateOnly))
			}
			return w.Flush()
		},
	}
}

func newSettingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "List stored settings categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			records, err := s.ListSettings(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing settings: %w", err)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No settings stored; defaults are in effect.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tBYTES\tUPDATED")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%d\t%s\n", rec.Key, len(rec.Value), rec.UpdatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}
