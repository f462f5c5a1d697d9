package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"konnect/internal/crypto"
	"konnect/internal/domain"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint [type:id]",
		Short: "Print your fingerprint, or a member's",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				who, err := domain.ParseIdentity(args[0])
				if err != nil {
					return err
				}
				pub, err := wire.Relay.RecipientKey(cmd.Context(), who)
				if err != nil {
					return err
				}
				fp, err := crypto.Fingerprint(pub)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", who, fp)
				return nil
			}
			sess, err := wire.Login(cmd.Context())
			if err != nil {
				return err
			}
			fp, err := wire.Identity.Fingerprint(sess)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", sess.User, fp)
			return nil
		},
	}
}
