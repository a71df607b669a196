package mediactl

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/miloc/internal/common"
	"github.com/dmitrijs2005/miloc/internal/server/services"
	"github.com/spf13/cobra"
)

// ErrVerifyFailed is returned when at least one asset did not decrypt.
var ErrVerifyFailed = errors.New("verification failed")

func newVerifyCmd(st *state) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Decrypt every asset of a user in memory and report failures",
		Long: `verify reads each stored blob of the user, decrypts it in memory with the
user's key and prints OK or FAILED with a failure class. Plaintext is never
written anywhere and a missing key is reported, not created. Exits non-zero
when the user does not exist or any asset fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			results, err := st.env.Media.Verify(cmd.Context(), userID)
			if err != nil {
				if errors.Is(err, common.ErrorNotFound) {
					return fmt.Errorf("user %s: %w", userID, common.ErrorNotFound)
				}
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			failed := 0
			for _, r := range results {
				if r.Err == nil {
					fmt.Fprintf(tw, "OK\t%s\t%s\n", r.Asset.ID, r.Asset.StoragePath)
					continue
				}
				failed++
				fmt.Fprintf(tw, "FAILED\t%s\t%s\t%s\n", r.Asset.ID, r.Asset.StoragePath, services.FailureClass(r.Err))
				st.env.Logger.Debug(cmd.Context(), "asset failed verification", "asset_id", r.Asset.ID, "error", r.Err)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d asset(s), %d failed\n", len(results), failed)
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d asset(s)", ErrVerifyFailed, failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
