package mediactl

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPurgeTokensCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-tokens",
		Short: "Delete expired refresh tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := st.env.Repos.RefreshTokens(st.env.DB).DeleteExpired(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d token(s)\n", n)
			return nil
		},
	}
}
