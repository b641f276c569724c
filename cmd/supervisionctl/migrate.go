package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "One-off data migrations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "legacy-schools",
		Short: "Tag records saved before schools existed with the first configured school",
		Long: "Loading the collections applies the migration and writes back every collection it touched. " +
			"Running it again is a no-op.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			c, rev := e.state.Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "collections at revision %d; default school %q\n", rev, c.DefaultSchool())
			return nil
		},
	})
	return cmd
}
