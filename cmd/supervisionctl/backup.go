package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	"github.com/noah-isme/sma-supervision-api/internal/service"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or import backup files",
	}
	cmd.AddCommand(newBackupExportCmd(), newBackupImportCmd(), newBackupHistoryCmd())
	return cmd
}

func newBackupExportCmd() *cobra.Command {
	var (
		slice  string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a backup file for the whole store or one slice",
		Example: "  supervisionctl backup export --slice full -o backup.json\n" +
			"  supervisionctl backup export --slice school:\"North Campus\"",
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := service.ParseSlice(slice)
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			file, err := e.backups().ExportSlice(cmd.Context(), parsed)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				out = f
			}
			if err := writeBackup(out, file); err != nil {
				return err
			}
			if out != cmd.OutOrStdout() {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d keys to %s\n", len(file), output)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&slice, "slice", string(models.SliceFull), "full, teacher:<id>, school:<name> or evaluation_type:<type>")
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file (stdout when empty)")
	return cmd
}

func newBackupImportCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Validate and apply a backup file, archiving current values first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := readBackup(args[0])
			if err != nil {
				return err
			}
			keys, err := service.ValidateBackup(file)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "valid backup with %d keys\n", len(keys))
				return nil
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			summary, err := e.backups().Restore(cmd.Context(), file, "cli:"+args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d keys; previous values archived as %s\n", len(summary.Keys), summary.HistoryID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only validate the file")
	return cmd
}

func newBackupHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List archived import slots, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			entries, err := e.backups().ListHistory(cmd.Context())
			if err != nil {
				return err
			}
			for _, h := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d keys\n", h.ID, h.CreatedAt.Format("2006-01-02 15:04:05"), h.Source, h.Keys)
			}
			return nil
		},
	}
}

func readBackup(path string) (models.BackupFile, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	var file models.BackupFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return file, nil
}

func writeBackup(w io.Writer, file models.BackupFile) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(file)
}
