package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"konnect/internal/domain"
)

// send <identity> <message>: encrypt and send a message to one member.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <type:id> <message>",
		Short: "Encrypt and send a message to a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := domain.ParseIdentity(args[0])
			if err != nil {
				return err
			}
			sess, err := wire.Login(cmd.Context())
			if err != nil {
				return err
			}
			if err := wire.Messages.SendDirect(cmd.Context(), sess, to, []byte(args[1])); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
			return nil
		},
	}
}

// send-group <group> <message>: encrypt and send to every other member.
func sendGroupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send-group <group> <message>",
		Short: "Encrypt and send a message to every member of a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := wire.Login(cmd.Context())
			if err != nil {
				return err
			}
			if err := wire.Messages.SendGroup(cmd.Context(), sess, domain.GroupID(args[0]), []byte(args[1])); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
			return nil
		},
	}
}
