package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"geodash/internal/geocode"
	"geodash/internal/loader"
	"geodash/internal/record"
)

func newGeocodeCommand() *cobra.Command {
	var (
		limit  int
		dryRun bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "geocode",
		Short: "Geocode records without coordinates once and store the result",
		Long: `Load every allow-listed table, look up the address of each record that has
no coordinates and write them back through the coordinate update path.
Rows the update no longer matches are counted, not treated as errors.`,
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

			res := a.newLoader(src).Load(cmd.Context(), loader.LogNotifier{Log: a.log})
			pending := missingCoords(res.Records, limit)

			var w geocode.CoordWriter = src
			if dryRun {
				w = nil
			}
			_, st, err := a.newFiller(w).Fill(cmd.Context(), pending)
			if rerr := render(cmd.OutOrStdout(), format, st, func(out io.Writer) error {
				return fillText(out, st)
			}); rerr != nil {
				return rerr
			}
			if err != nil {
				return fmt.Errorf("geocode: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Handle at most this many records (0 = all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Look up coordinates without writing them")
	cmd.Flags().StringVarP(&format, "output", "o", formatTable, "Output format (table|json|yaml)")
	return cmd
}

func missingCoords(recs []record.Record, limit int) []record.Record {
	var out []record.Record
	for _, r := range recs {
		if r.HasCoords() {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func fillText(w io.Writer, st geocode.FillStats) error {
	t := newTable(w, table.Row{"Ergebnis", "Anzahl"})
	t.AppendRows([]table.Row{
		{"ohne Koordinaten", st.Missing},
		{"gefunden", st.Geocoded},
		{"gespeichert", st.Updated},
		{"kein Datensatz", st.NotFound},
		{"keine Treffer", st.NoResult},
		{"übersprungen", st.Skipped},
		{"Fehler", st.Failed},
	})
	t.Render()
	return nil
}
