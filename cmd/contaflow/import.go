package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/contaflow/contaflow/internal/importer"
	"github.com/contaflow/contaflow/internal/model"
	"github.com/contaflow/contaflow/internal/statement"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a monthly bank statement export",
		Long: `Import a delimited bank statement export for one account and period.

Imports are idempotent: uploading byte-identical content for the same
account and period returns the existing batch. Rows already committed to
the batch are skipped by content fingerprint.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().StringP("account", "a", "", "account identifier the statement belongs to")
	cmd.Flags().IntP("month", "m", 0, "reporting month (1-12)")
	cmd.Flags().IntP("year", "y", 0, "reporting year (4 digits)")
	cmd.Flags().String("delimiter", ";", "column delimiter in the export")
	cmd.Flags().Bool("no-header", false, "statement file has no header line")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("month")
	_ = cmd.MarkFlagRequired("year")

	_ = viper.BindPFlag("import.delimiter", cmd.Flags().Lookup("delimiter"))

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	accountID, _ := cmd.Flags().GetString("account")
	month, _ := cmd.Flags().GetInt("month")
	year, _ := cmd.Flags().GetInt("year")
	noHeader, _ := cmd.Flags().GetBool("no-header")

	delimiter := viper.GetString("import.delimiter")
	if len(delimiter) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", delimiter)
	}

	fileBytes, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read statement file: %w", err)
	}

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	parser := statement.NewParser()
	parser.Delimiter = rune(delimiter[0])
	parser.SkipHeader = !noHeader

	pipeline := importer.NewPipeline(store, parser)

	slog.Info("importing statement", "file", args[0], "account", accountID, "period", model.Period{Month: month, Year: year})

	batch, err := pipeline.ProcessImport(ctx, fileBytes, accountID, model.Period{Month: month, Year: year})
	if err != nil {
		if statement.IsParseError(err) {
			return fmt.Errorf("statement rejected, nothing was imported:\n%w", err)
		}
		return err
	}

	fmt.Printf("Batch %s (%s): %d rows, %d duplicates skipped\n",
		batch.ID, batch.Status, batch.RowCount, batch.DuplicateCount)
	return nil
}
