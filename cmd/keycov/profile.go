package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"locksmith-coverage/internal/models"
	"locksmith-coverage/internal/tiers"
)

// profileCmd manages stored owned-tool profiles
func profileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage owned-tool profiles",
	}

	var (
		name   string
		tools  []string
		cables []string
	)
	setCmd := &cobra.Command{
		Use:   "set [id]",
		Short: "Create or replace a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openProfiles()
			if err != nil {
				return err
			}
			defer store.Close()

			registry := tiers.Default()
			for _, id := range tools {
				if _, ok := registry.Family(id); !ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: unknown tool %q will be ignored during assessment\n", id)
				}
			}

			saved, err := store.Put(models.OwnedProfile{
				ID:    args[0],
				Name:  name,
				Tools: models.OwnedToolSet{ToolIDs: tools, Cables: cables},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %s (%d tools, %d cables)\n",
				saved.ID, len(saved.Tools.ToolIDs), len(saved.Tools.Cables))
			return nil
		},
	}
	setCmd.Flags().StringVar(&name, "name", "", "Display name")
	setCmd.Flags().StringSliceVarP(&tools, "tool", "t", nil, "Owned tool id (repeatable)")
	setCmd.Flags().StringSliceVar(&cables, "cable", nil, "Owned cable or adapter (repeatable)")

	getCmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openProfiles()
			if err != nil {
				return err
			}
			defer store.Close()

			p, err := store.Get(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), p)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openProfiles()
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No profiles found. Use 'keycov profile set' to create one.")
				return nil
			}
			for _, p := range list {
				fmt.Fprintf(out, "%-16s %-20s %s\n", p.ID, p.Name, strings.Join(p.Tools.ToolIDs, ", "))
			}
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openProfiles()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(setCmd, getCmd, listCmd, deleteCmd)
	return cmd
}
