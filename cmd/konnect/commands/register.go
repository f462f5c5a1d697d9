package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// register: republish the stored public key, e.g. after a failed keygen.
func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Publish your public key to the key server",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := wire.Login(cmd.Context())
			if err != nil {
				return err
			}
			if err := wire.Identity.Register(cmd.Context(), sess); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "registered", sess.User)
			return nil
		},
	}
}
