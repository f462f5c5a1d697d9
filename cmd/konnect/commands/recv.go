package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"konnect/internal/domain"
)

// recv: fetch and decrypt queued messages.
func recvCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Fetch and decrypt your queued messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := wire.Login(cmd.Context())
			if err != nil {
				return err
			}
			msgs, err := wire.Messages.Receive(cmd.Context(), sess, limit)
			printMessages(cmd.OutOrStdout(), msgs)
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of messages (default server limit)")
	return cmd
}

func printMessages(w io.Writer, msgs []domain.DecryptedMessage) {
	for _, m := range msgs {
		ts := time.Unix(m.Timestamp, 0).Format(time.DateTime)
		if m.Group != "" {
			fmt.Fprintf(w, "%s [%s] %s: %s\n", ts, m.Group, m.From, m.Plaintext)
			continue
		}
		fmt.Fprintf(w, "%s %s: %s\n", ts, m.From, m.Plaintext)
	}
}
