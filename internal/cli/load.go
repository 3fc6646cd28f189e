package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"geodash/internal/loader"
	"geodash/internal/tables"
)

func newLoadCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load every allow-listed table and report per-table results",
		Long: `Fetch every allow-listed table in order, exactly as the dashboard does.
A failing table is reported and skipped; the command only fails when no
table could be loaded.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			src, closeSrc, err := a.openSource(cmd.Context())
			if err != nil {
				return err
			}
			defer closeSrc()

			collect := &loader.Collector{}
			res := a.newLoader(src).Load(cmd.Context(), collect)

			out := struct {
				loader.Result
				Notifications []loader.Notification `json:"notifications"`
			}{res, collect.Notifications()}
			if err := render(cmd.OutOrStdout(), format, out, func(w io.Writer) error {
				return loadText(w, res, out.Notifications)
			}); err != nil {
				return err
			}
			if len(res.Tables) > 0 && len(res.Failed()) == len(res.Tables) {
				return fmt.Errorf("no table could be loaded")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", formatTable, "Output format (table|json|yaml)")
	return cmd
}

func loadText(w io.Writer, res loader.Result, notes []loader.Notification) error {
	t := newTable(w, table.Row{"Tabelle", "Einträge", "Status"})
	for _, tr := range res.Tables {
		status := "ok"
		if tr.Err != nil {
			status = tr.Error
		}
		t.AppendRow(table.Row{tables.DisplayName(tr.Table), tr.Count, status})
	}
	t.AppendFooter(table.Row{"Gesamt", res.Total, fmt.Sprintf("%d mit Koordinaten", res.Geocoded)})
	t.Render()
	for _, n := range notes {
		_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", n.Variant, n.Title, n.Description)
	}
	return nil
}
