package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Recover your keys from the vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := wire.Login(cmd.Context())
			if err != nil {
				return err
			}
			fp, err := wire.Identity.Fingerprint(sess)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s.\nFingerprint: %s\n", sess.User, fp)
			return nil
		},
	}
}
