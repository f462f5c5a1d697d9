package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"konnect/internal/domain"
)

func vaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage stored key records",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "remove [type:id]",
			Short: "Delete one stored key record (default your own)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var who domain.Identity
				if len(args) == 1 {
					var err error
					if who, err = domain.ParseIdentity(args[0]); err != nil {
						return err
					}
				} else {
					sess, err := wire.RequireSession()
					if err != nil {
						return err
					}
					who = sess.User
				}
				if err := wire.Vault.Remove(cmd.Context(), who); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "removed", who)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every stored key record",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := wire.Vault.ClearAll(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cleared")
				return nil
			},
		},
	)
	return cmd
}
