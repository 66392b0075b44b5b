package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/vaultsync/pkg/auth"
)

func NewAuthCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Tasks",
		Long: `Authorize access to Google Tasks through the browser. Put the OAuth
client file downloaded from the Google Cloud console at
<config-dir>/credentials.json first. An existing token is replaced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			tokenFile := filepath.Join(a.dir, auth.TokenFile)
			if err := os.Remove(tokenFile); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("could not delete token file '%s': %w, please delete it manually", tokenFile, err)
			}

			err = auth.Authorize(contextOf(cmd), a.dir, a.log, func(authURL string) {
				fmt.Fprintf(cmd.OutOrStdout(), "Open the following URL in your browser to authorize vaultsync:\n%s\n", authURL)
			})
			if err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Authentication successful! Token saved to %s\n", tokenFile)
			return nil
		},
	}
}
