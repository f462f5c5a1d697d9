package commands

import (
	"github.com/spf13/cobra"

	"konnect/internal/domain"
)

// history <peer>: list cached messages with a member, or a group with --group.
func historyCmd() *cobra.Command {
	var (
		limit int
		group bool
	)
	cmd := &cobra.Command{
		Use:   "history <type:id | group>",
		Short: "List cached messages of one conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv := args[0]
			if group {
				conv = domain.DecryptedMessage{Group: domain.GroupID(conv)}.Conversation()
			} else if _, err := domain.ParseIdentity(conv); err != nil {
				return err
			}
			sess, err := wire.Login(cmd.Context())
			if err != nil {
				return err
			}
			msgs, err := wire.Messages.History(sess, conv, limit)
			if err != nil {
				return err
			}
			printMessages(cmd.OutOrStdout(), msgs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of messages")
	cmd.Flags().BoolVar(&group, "group", false, "treat the argument as a group id")
	return cmd
}
