package commands

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"konnect/internal/crypto"
	"konnect/internal/services/identity"
)

func keygenCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate your key pair, store it in the vault and publish the public key",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := wire.RequireSession()
			if err != nil {
				return err
			}
			create := wire.Identity.Create
			if force {
				create = wire.Identity.Replace
			}
			kp, err := create(cmd.Context(), sess)
			if errors.Is(err, identity.ErrIdentityExists) {
				return errors.Wrap(err, "use --force to replace it")
			}
			if kp.PublicKey == "" {
				return err
			}
			fp, _ := crypto.Fingerprint(kp.PublicKey)
			fmt.Fprintf(cmd.OutOrStdout(), "Identity %s created.\nFingerprint: %s\n", sess.User, fp)
			if err != nil {
				return errors.Wrap(err, "keys stored but not published, run register")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace the keys already stored for this user")
	return cmd
}
