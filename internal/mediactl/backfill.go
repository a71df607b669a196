package mediactl

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/miloc/internal/common"
	"github.com/spf13/cobra"
)

const defaultBatchSize = 100

func newBackfillCmd(st *state) *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "backfill-keys",
		Short: "Generate media keys for users that have none",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := Backfill(cmd.Context(), st.env, batch)
			fmt.Fprintf(cmd.OutOrStdout(), "backfilled %d user(s)\n", n)
			return err
		},
	}
	cmd.Flags().IntVar(&batch, "batch", defaultBatchSize, "users per batch")

	return cmd
}

// Backfill creates keys for key-less users in batches until none are left.
// It goes through the vault, so a concurrent first upload and the backfill
// agree on a single key. It stops at the first failing user.
func Backfill(ctx context.Context, env *Env, batch int) (int, error) {
	if batch <= 0 {
		batch = defaultBatchSize
	}

	repo := env.Repos.Users(env.DB)
	done := 0

	for {
		ids, err := repo.ListWithoutKey(ctx, batch)
		if err != nil {
			return done, err
		}
		if len(ids) == 0 {
			return done, nil
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return done, err
			}

			key, err := env.Vault.GetOrCreateKey(ctx, id)
			if err != nil {
				return done, fmt.Errorf("user %s: %w", id, err)
			}
			common.WipeByteArray(key)

			done++
			env.Logger.Debug(ctx, "key created", "user_id", id)
		}
	}
}
