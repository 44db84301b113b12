package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"github.com/jmcleod/incorpdash/session"
	"github.com/jmcleod/incorpdash/storage"
	bboltstorage "github.com/jmcleod/incorpdash/storage/bbolt"
)

var revokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Sign a dashboard client out",
	Long: `Invalidates the stored session of a dashboard client.

With the redis backend the running dashboard for --client-id is notified and
returns to the login page immediately. With the local backend the dashboard
must be stopped first, since it holds the data file open.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(os.Stderr, logLevel)
		if err != nil {
			return err
		}
		// Only the local backend keeps its state in the data file.
		var kv storage.KV
		if backendKind == backendLocal {
			store, err := bboltstorage.NewFromFile(filepath.Join(dataDir, dbFile), &bbolt.Options{Timeout: revokeOpenTimeout})
			if err != nil {
				if errors.Is(err, bbolt.ErrTimeout) {
					return errors.New("data file is in use; stop the dashboard or use the redis backend")
				}
				return fmt.Errorf("failed to open dashboard storage: %w", err)
			}
			defer store.Close()
			kv = store
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), session.DefaultTimeout)
		defer cancel()
		backend, closeBackend, err := openBackend(ctx, kv, logger)
		if err != nil {
			return err
		}
		defer closeBackend()

		if err := revoke(ctx, backend); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Session revoked.")
		return nil
	},
}

const revokeOpenTimeout = 2 * time.Second

func revoke(ctx context.Context, backend session.Backend) error {
	if err := backend.SignOut(ctx); err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(revokeCmd)
}
