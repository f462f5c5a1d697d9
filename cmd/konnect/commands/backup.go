package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Keep a copy of your keys on the key server",
	}

	var out string
	create := &cobra.Command{
		Use:   "create",
		Short: "Upload a key backup and write its recovery key to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := wire.Login(cmd.Context())
			if err != nil {
				return err
			}
			rk, err := wire.Backups.Create(cmd.Context(), sess)
			if err != nil {
				return err
			}
			if err := atomic.WriteFile(out, strings.NewReader(rk)); err != nil {
				return errors.Wrapf(err, "write recovery key; the uploaded backup cannot be opened without it, run backup create again")
			}
			if err := os.Chmod(out, 0o600); err != nil {
				return errors.Wrapf(err, "chmod %s", out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup uploaded.\nRecovery key written to %s; keep it offline.\n", out)
			return nil
		},
	}
	create.Flags().StringVarP(&out, "out", "o", "recovery-key.pem", "file to write the recovery key to")

	restore := &cobra.Command{
		Use:   "restore <recovery-key-file>",
		Short: "Restore your keys from the server backup into the vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := wire.RequireSession()
			if err != nil {
				return err
			}
			rk, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "read recovery key")
			}
			if err := wire.Backups.Restore(cmd.Context(), sess, string(rk)); err != nil {
				return err
			}
			fp, err := wire.Identity.Fingerprint(sess)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Keys restored for %s.\nFingerprint: %s\n", sess.User, fp)
			return nil
		},
	}

	cmd.AddCommand(create, restore)
	return cmd
}
