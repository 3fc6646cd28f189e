package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"geodash/internal/record"
	"geodash/internal/sheet"
)

// batchInserter is implemented by stores that can insert inside one transaction.
type batchInserter interface {
	EnsureTable(ctx context.Context, table string) error
	InsertRecords(ctx context.Context, table string, records []record.Record) error
}

func newImportCommand() *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Insert the rows of a spreadsheet (xlsx or csv) into a table",
		Example: `  geodash import anschluesse.xlsx --table Gefilterte_Adressen_Worth
  geodash import export.csv --table Gefilterte_Adressen_Kollow --store sqlite`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if err := a.cfg.AllowList().Check(table); err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			recs, err := sheet.Read(f, args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			store, closeStore, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			if err := insertAll(cmd.Context(), store, table, recs); err != nil {
				return err
			}
			a.log.Info().Str("table", table).Int("records", len(recs)).Msg("import finished")
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d Einträge in %s importiert\n", len(recs), table)
			return nil
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "Target table (required)")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

func insertAll(ctx context.Context, store dataStore, table string, recs []record.Record) error {
	if b, ok := store.(batchInserter); ok {
		if err := b.EnsureTable(ctx, table); err != nil {
			return fmt.Errorf("prepare %s: %w", table, err)
		}
		return b.InsertRecords(ctx, table, recs)
	}
	for i, r := range recs {
		if err := store.InsertRecord(ctx, table, r); err != nil {
			return fmt.Errorf("insert row %d into %s: %w", i+1, table, err)
		}
	}
	return nil
}
