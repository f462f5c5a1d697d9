package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"konnect/internal/domain"
)

func groupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage groups on the key server",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <group> <type:id>...",
		Short: "Replace the members of a group (admin only)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			members := make([]domain.Identity, 0, len(args)-1)
			for _, a := range args[1:] {
				who, err := domain.ParseIdentity(a)
				if err != nil {
					return err
				}
				members = append(members, who)
			}
			g := domain.GroupID(args[0])
			if err := wire.Relay.SetGroupMembers(cmd.Context(), g, members); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "group %s has %d members\n", g, len(members))
			return nil
		},
	})
	return cmd
}
