package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// request <path> <json>: send an enveloped API request and print the answer.
func requestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "request <path> <json>",
		Short: "Send an enveloped request to an API path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := json.RawMessage(args[1])
			if !json.Valid(body) {
				return errors.New("body is not valid JSON")
			}
			sess, err := wire.Login(cmd.Context())
			if err != nil {
				return err
			}
			var out json.RawMessage
			if err := wire.Requests.Do(cmd.Context(), sess, args[0], body, &out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
