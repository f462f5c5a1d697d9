package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"konnect/internal/crypto"
	"konnect/internal/domain"
)

// seal <identity> <text>: print an envelope token only that member can open.
func sealCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seal <type:id> <text>",
		Short: "Encrypt a note to a member's public key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := domain.ParseIdentity(args[0])
			if err != nil {
				return err
			}
			pub, err := wire.Relay.RecipientKey(cmd.Context(), to)
			if err != nil {
				return err
			}
			tok, err := crypto.SealFor([]byte(args[1]), pub)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
}

func openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <token>",
		Short: "Open a note sealed to you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := wire.Login(cmd.Context())
			if err != nil {
				return err
			}
			pt, err := crypto.OpenFrom(args[0], sess.Keys.PrivateKey)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(pt))
			return nil
		},
	}
}
