package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"geodash/internal/sqlcgen"
	"geodash/internal/tables"
)

func newInspectTableCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "inspect-table [TABLE]",
		Short: "Show the columns and primary key of a table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			name := tables.Geesthacht
			if len(args) == 1 {
				name = tables.FromDisplayName(args[0])
			}

			store, closeStore, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			cols, err := store.ListTableColumns(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("inspect %s: %w", name, err)
			}
			if len(cols) == 0 {
				return fmt.Errorf("table %s not found", name)
			}

			out := struct {
				Table      string           `json:"table"`
				Columns    []sqlcgen.Column `json:"columns"`
				PrimaryKey []string         `json:"primary_key"`
			}{Table: name, Columns: cols, PrimaryKey: primaryKey(cols)}
			return render(cmd.OutOrStdout(), format, out, func(w io.Writer) error {
				return inspectText(w, name, cols)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", formatTable, "Output format (table|json|yaml)")
	return cmd
}

func primaryKey(cols []sqlcgen.Column) []string {
	pk := []string{}
	for _, c := range cols {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

func inspectText(w io.Writer, name string, cols []sqlcgen.Column) error {
	_, _ = fmt.Fprintf(w, "Tabelle: %s\n", name)
	t := newTable(w, table.Row{"Spalte", "Typ", "Nullable", "PK"})
	for _, c := range cols {
		pk := ""
		if c.PrimaryKey {
			pk = "[PK]"
		}
		t.AppendRow(table.Row{c.Name, c.Type, c.Nullable, pk})
	}
	t.Render()

	if pk := primaryKey(cols); len(pk) > 0 {
		_, _ = fmt.Fprintf(w, "Primary Key: %s\n", strings.Join(pk, ", "))
	} else {
		_, _ = fmt.Fprintln(w, "Kein Primary Key definiert!")
	}
	return nil
}
